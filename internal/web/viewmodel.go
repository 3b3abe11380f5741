package web

import (
	"fmt"
	"html/template"
	"strings"

	"treno/internal/journal"
	"treno/internal/model"
	"treno/internal/sanitize"
)

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type pageVM struct {
	Version uint64
	Mode    string
	Alerts  []string

	MonthTitle    string
	Weekdays      []string
	Days          []dayVM
	SelectedKey   string
	SelectedTitle string
	Cards         []cardVM

	Form   *formVM
	Delete *deleteVM

	DatastarURL string
}

type dayVM struct {
	Key        string
	Day        int
	InMonth    bool
	Today      bool
	Selected   bool
	HasRecords bool
	Color      string
}

type cardVM struct {
	Index     int
	SwipeID   string
	Part      string
	Color     string
	Note      string
	Images    []string
	State     string
	Transform string
}

type colorVM struct {
	ID       string
	Color    string
	Selected bool
}

type imageVM struct {
	Index int
	Src   string
}

type formVM struct {
	DateLabel    string
	Editing      bool
	Part         string
	Colors       []colorVM
	Images       []imageVM
	CanAddImage  bool
	MaxImages    int
	Note         string
	NoteRevision uint64
}

type deleteVM struct {
	DateLabel string
	Index     int
}

func newPageVM(v journal.View, alerts []string) pageVM {
	vm := pageVM{
		Version:       v.Version,
		Mode:          string(v.Mode),
		Alerts:        alerts,
		MonthTitle:    v.Selected.Format("January 2006"),
		Weekdays:      weekdays,
		SelectedKey:   v.SelectedKey,
		SelectedTitle: v.SelectedTitle,
		DatastarURL:   DatastarURL,
	}
	for _, d := range v.Grid {
		vm.Days = append(vm.Days, dayVM{
			Key:        d.Key,
			Day:        d.Day,
			InMonth:    d.InMonth,
			Today:      d.Today,
			Selected:   d.Selected,
			HasRecords: d.HasRecords,
			Color:      d.Color,
		})
	}
	for _, c := range v.Cards {
		vm.Cards = append(vm.Cards, cardVM{
			Index:     c.Index,
			SwipeID:   c.SwipeID,
			Part:      c.Record.Part,
			Color:     c.Record.Color,
			Note:      c.Record.Note,
			Images:    c.Record.Images,
			State:     string(c.State),
			Transform: translateX(c.Offset),
		})
	}
	if f := v.Form; f != nil {
		fvm := &formVM{
			DateLabel:    f.DateLabel,
			Editing:      f.Editing(),
			Part:         f.Part,
			CanAddImage:  f.CanAddImage(),
			MaxImages:    model.MaxImagesPerRecord,
			Note:         f.Note,
			NoteRevision: f.NoteRevision,
		}
		for _, c := range model.Palette {
			fvm.Colors = append(fvm.Colors, colorVM{ID: c.ID, Color: c.Color, Selected: strings.EqualFold(c.Color, f.Color)})
		}
		for i, src := range f.Images {
			fvm.Images = append(fvm.Images, imageVM{Index: i, Src: src})
		}
		vm.Form = fvm
	}
	if d := v.Delete; d != nil {
		vm.Delete = &deleteVM{DateLabel: d.DateLabel, Index: d.Index}
	}
	return vm
}

func translateX(offset float64) string {
	if offset == 0 {
		return ""
	}
	return fmt.Sprintf("transform: translateX(%gpx)", offset)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// noteHTML re-sanitizes stored note markup before it is trusted.
		"noteHTML": func(s string) template.HTML { return template.HTML(sanitize.HTML(s)) },
		"imgSrc":   imgSrc,
		"css":      func(s string) template.CSS { return template.CSS(s) },
		"swatch": func(c string) template.CSS {
			rc, ok := model.ResolveColor(c)
			if !ok {
				rc = model.DefaultColor
			}
			return template.CSS("background:" + rc)
		},
	}
}

// imgSrc lets image data URIs through html/template, which would otherwise
// replace them with "#ZgotmplZ".
func imgSrc(s string) any {
	if strings.HasPrefix(s, "data:image/") && !strings.ContainsAny(s, "\"'<> ") {
		return template.URL(s)
	}
	return s
}
