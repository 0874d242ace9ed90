package xmlnode

import (
	"errors"
	"strings"
	"testing"
)

func TestParseBuildsTree(t *testing.T) {
	doc := `<?xml version="1.0"?>
<!DOCTYPE nmaprun>
<host starttime="1">
  <status state="up"/>
  <hostnames><hostname name="a"/><hostname name="b"/></hostnames>
  <!-- comment -->
  <note>hello &amp; bye</note>
</host>`
	root, err := ParseString(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if root.Tag() != "host" {
		t.Fatalf("unexpected root tag %q", root.Tag())
	}
	if v, ok := root.Attr("starttime"); !ok || v != "1" {
		t.Fatalf("unexpected starttime attr %q %v", v, ok)
	}
	if _, ok := root.Attr("endtime"); ok {
		t.Fatalf("expected endtime to be absent")
	}
	if len(root.Children()) != 3 {
		t.Fatalf("expected 3 element children, got %d", len(root.Children()))
	}
	names, ok := root.Child("hostnames")
	if !ok {
		t.Fatalf("expected hostnames child")
	}
	var got []string
	for _, c := range names.Children() {
		v, _ := c.Attr("name")
		got = append(got, v)
	}
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("children out of order: %v", got)
	}
	note, _ := root.Child("note")
	if note.Text() != "hello & bye" {
		t.Fatalf("unexpected text %q", note.Text())
	}
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := ParseString(`<?xml version="1.0"?>`)
	if !errors.Is(err, ErrNoRoot) {
		t.Fatalf("expected ErrNoRoot, got %v", err)
	}
}

func TestParseMalformedDocument(t *testing.T) {
	if _, err := ParseString(`<host><status></host>`); err == nil {
		t.Fatalf("expected error for mismatched tags")
	}
}
