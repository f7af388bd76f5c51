package location

import (
	"errors"
	"testing"
)

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		raw  string
		want Location
	}{
		{"/data/in/map.ditamap", Plain{Path: "/data/in/map.ditamap"}},
		{"relative/file.txt", Plain{Path: "relative/file.txt"}},
		{"file:///data/in.txt", Plain{Path: "/data/in.txt"}},
		{`C:\work\in.txt`, Plain{Path: `C:\work\in.txt`}},
		{"s3://bucket/some/key.zip", Object{Bucket: "bucket", Key: "some/key.zip"}},
		{"s3://bucket", Object{Bucket: "bucket"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %#v; want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParse_HTTP(t *testing.T) {
	for _, raw := range []string{"http://example.com/a/b.zip", "https://example.com/upload?x=1"} {
		loc, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}
		h, ok := loc.(HTTP)
		if !ok {
			t.Fatalf("Parse(%q) = %T; want HTTP", raw, loc)
		}
		if h.String() != raw {
			t.Errorf("String() = %q; want %q", h.String(), raw)
		}
	}
}

func TestParse_ArchiveRoundTrip(t *testing.T) {
	tests := []struct {
		raw   string
		inner string
		entry string
	}{
		{"archive:s3://bucket/in.zip!/topic.dita", "s3://bucket/in.zip", "topic.dita"},
		{"archive:https://example.com/in.zip!/dir/sub/topic.dita", "https://example.com/in.zip", "dir/sub/topic.dita"},
		{"archive:/tmp/in.zip!/a.txt", "/tmp/in.zip", "a.txt"},
		{"jar:s3://bucket/in.jar!/a.txt", "s3://bucket/in.jar", "a.txt"},
		{"archive:https://example.com/in.zip?sig=abc!/a.txt", "https://example.com/in.zip?sig=abc", "a.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			loc, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			a, ok := loc.(Archive)
			if !ok {
				t.Fatalf("expected Archive, got %T", loc)
			}
			if a.Inner.String() != tt.inner {
				t.Errorf("inner = %q; want %q", a.Inner.String(), tt.inner)
			}
			if a.Entry != tt.entry {
				t.Errorf("entry = %q; want %q", a.Entry, tt.entry)
			}
		})
	}
}

func TestParse_ArchiveWithoutEntry(t *testing.T) {
	for _, raw := range []string{"archive:s3://bucket/in.zip", "archive:s3://bucket/in.zip!/"} {
		loc, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", raw, err)
		}
		a, ok := loc.(Archive)
		if !ok {
			t.Fatalf("Parse(%q) = %T; want Archive", raw, loc)
		}
		if a.Entry != "" {
			t.Errorf("Parse(%q) entry = %q; want empty", raw, a.Entry)
		}
		if a.Inner != (Object{Bucket: "bucket", Key: "in.zip"}) {
			t.Errorf("Parse(%q) inner = %#v", raw, a.Inner)
		}
	}
}

func TestParse_NestedArchive(t *testing.T) {
	loc, err := Parse("archive:archive:s3://bucket/outer.zip!/a.zip!/entry.txt")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	outer, ok := loc.(Archive)
	if !ok {
		t.Fatalf("expected Archive, got %T", loc)
	}
	if outer.Entry != "entry.txt" {
		t.Errorf("outer entry = %q; want entry.txt", outer.Entry)
	}
	inner, ok := outer.Inner.(Archive)
	if !ok {
		t.Fatalf("expected nested Archive, got %T", outer.Inner)
	}
	if inner.Entry != "a.zip" {
		t.Errorf("inner entry = %q; want a.zip", inner.Entry)
	}
	if inner.Inner != (Object{Bucket: "bucket", Key: "outer.zip"}) {
		t.Errorf("innermost = %#v", inner.Inner)
	}
	if Depth(loc) != 2 {
		t.Errorf("Depth = %d; want 2", Depth(loc))
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"ftp://example.com/file.txt",
		"gopher://example.com",
		"s3://",
		"s3:bucket/key",
		"http:///path",
		"archive:!/entry.txt",
		"archive:ftp://example.com/a.zip!/x",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			if !errors.Is(err, ErrInvalidLocation) {
				t.Errorf("Parse(%q) error = %v; want ErrInvalidLocation", raw, err)
			}
		})
	}
}

func TestParse_DepthLimit(t *testing.T) {
	raw := "s3://bucket/base.zip"
	for i := 0; i < MaxDepth; i++ {
		raw = "archive:" + raw + "!/next.zip"
	}
	if _, err := Parse(raw); err != nil {
		t.Fatalf("Parse at max depth failed: %v", err)
	}

	raw = "archive:" + raw + "!/one-too-many.txt"
	if _, err := Parse(raw); !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation beyond max depth, got %v", err)
	}
}

func TestNames(t *testing.T) {
	h := MustParse("https://example.com/files/in.zip").(HTTP)
	if h.Name() != "in.zip" {
		t.Errorf("HTTP.Name() = %q; want in.zip", h.Name())
	}
	h = MustParse("https://example.com/").(HTTP)
	if h.Name() != "" {
		t.Errorf("HTTP.Name() = %q; want empty", h.Name())
	}
	o := Object{Bucket: "b", Key: "dir/out.zip"}
	if o.Name() != "out.zip" {
		t.Errorf("Object.Name() = %q; want out.zip", o.Name())
	}
}
