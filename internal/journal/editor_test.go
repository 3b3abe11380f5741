package journal

import "testing"

func TestEditor_Revision(t *testing.T) {
	t.Parallel()

	var e Editor
	e.Set("<p>a</p>")
	if e.Revision() != 1 {
		t.Fatalf("Set should bump the revision")
	}
	if !e.Input("<p>ab</p>") || e.Revision() != 1 {
		t.Fatalf("Input should change content without bumping the revision")
	}
	if e.Input("<p>ab</p>") {
		t.Fatalf("identical input is not a change")
	}
	if !e.Paste("<b>x</b><img src=\"javascript:alert(1)\">", "ignored", "") {
		t.Fatalf("Paste should report a change")
	}
	if e.HTML() != "<p>ab</p><b>x</b>" || e.Revision() != 2 {
		t.Fatalf("after paste: %q rev %d", e.HTML(), e.Revision())
	}
	if e.Paste("", "", "") {
		t.Fatalf("empty paste is not a change")
	}
}

func TestEditor_PasteAtCaret(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		html   string
		text   string
		around string
		want   string
	}{
		{"between words", "", "big ", "<p>a " + CaretMark + "lift</p>", "<p>a big lift</p>"},
		{"replaces selection", "<b>squat</b>", "", "<p>heavy " + CaretMark + " day</p>", "<p>heavy <b>squat</b> day</p>"},
		{"at start", "", "x", CaretMark + "<p>y</p>", "x<p>y</p>"},
		{"stray marks dropped", "", "1" + CaretMark, "<p>a" + CaretMark + "b" + CaretMark + "c</p>", "<p>a1bc</p>"},
		{"unsafe around cleaned", "", "ok", "<p>" + CaretMark + "<script>x()</script></p>", "<p>ok</p>"},
		{"no mark appends", "", "z", "<p>ignored</p>", "<p>start</p>z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var e Editor
			e.Set("<p>start</p>")
			if !e.Paste(tc.html, tc.text, tc.around) {
				t.Fatalf("Paste should report a change")
			}
			if e.HTML() != tc.want {
				t.Fatalf("html = %q, want %q", e.HTML(), tc.want)
			}
			if e.Revision() != 2 {
				t.Fatalf("revision = %d", e.Revision())
			}
		})
	}
}
