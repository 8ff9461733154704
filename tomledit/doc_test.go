package tomledit

import (
	"errors"
	"strings"
	"testing"
)

const sampleManifest = `# top comment
[package]
name = "demo"   # inline comment
version = "0.1.0"
edition = "2021"

[dependencies]
anyhow = "1.0"
serde = { version = "1.0", features = ["derive"] }  # keep me

[dev-dependencies]
criterion = "0.4"
`

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only comment", "# nothing here\n"},
		{"manifest", sampleManifest},
		{"no trailing newline", "[package]\nname = \"x\""},
		{"crlf", "[package]\r\nname = \"x\"\r\n"},
		{"multiline strings", "a = \"\"\"\nhello \\\n  world\"\"\"\nb = '''raw\ntext'''\n"},
		{"array of tables", "[[package]]\nname = \"a\"\n\n[[package]]\nname = \"b\"\n"},
		{"multiline array", "members = [\n  \"crates/a\", # first\n  \"crates/b\",\n]\n"},
		{"dotted keys", "serde.version = \"1.0\"\nserde.features = [\"derive\"]\n"},
		{"numbers", "a = 1_000\nb = 0xdead\nc = 1.5e3\nd = 1979-05-27T07:32:00Z\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse("test.toml", []byte(tt.input))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := string(doc.Serialize()); got != tt.input {
				t.Errorf("Serialize() = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing equals", "[package]\nname \"x\"\n"},
		{"unterminated string", "name = \"x\n"},
		{"unterminated array", "deps = [\"a\", \"b\"\n"},
		{"bad header", "[package\nname = \"x\"\n"},
		{"garbage value", "name = @wat\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.toml", []byte(tt.input))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("error %v is not ErrMalformedDocument", err)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("error %v is not a *ParseError", err)
			} else if perr.Pos.Line == 0 {
				t.Errorf("ParseError has no line information: %v", perr)
			}
		})
	}
}

func TestScalarEditTouchesOnlyValueSpan(t *testing.T) {
	doc, err := Parse("Cargo.toml", []byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	doc.Table("dependencies").Set("anyhow", NewString("1.5"))

	got := string(doc.Serialize())
	want := strings.Replace(sampleManifest, `anyhow = "1.0"`, `anyhow = "1.5"`, 1)
	if got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestInlineTableFieldEdit(t *testing.T) {
	doc, err := Parse("Cargo.toml", []byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	serde := doc.Table("dependencies").Get("serde")
	if serde == nil || serde.Kind() != KindInlineTable {
		t.Fatalf("serde entry missing or not an inline table: %v", serde)
	}
	serde.SetField("version", NewString("1.0.152"))

	got := string(doc.Serialize())
	want := strings.Replace(sampleManifest,
		`serde = { version = "1.0", features = ["derive"] }  # keep me`,
		`serde = { version = "1.0.152", features = ["derive"] }  # keep me`, 1)
	if got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestSortedInsert(t *testing.T) {
	input := "[dependencies]\nanyhow = \"1\"\nserde = \"1\"\ntokio = \"1\"\n"
	doc, err := Parse("Cargo.toml", []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	doc.Table("dependencies").Set("clap", NewString("4"))

	want := "[dependencies]\nanyhow = \"1\"\nclap = \"4\"\nserde = \"1\"\ntokio = \"1\"\n"
	if got := string(doc.Serialize()); got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestUnsortedInsertAppends(t *testing.T) {
	input := "[dependencies]\ntokio = \"1\"\nanyhow = \"1\"\n"
	doc, err := Parse("Cargo.toml", []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	doc.Table("dependencies").Set("clap", NewString("4"))

	want := "[dependencies]\ntokio = \"1\"\nanyhow = \"1\"\nclap = \"4\"\n"
	if got := string(doc.Serialize()); got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestEnsureTable(t *testing.T) {
	t.Run("existing table is returned", func(t *testing.T) {
		doc, err := Parse("Cargo.toml", []byte(sampleManifest))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		tbl := doc.EnsureTable("dependencies")
		if tbl.Created() {
			t.Error("existing table reported as created")
		}
		if got := string(doc.Serialize()); got != sampleManifest {
			t.Errorf("EnsureTable modified document: %q", got)
		}
	})

	t.Run("new table after related block", func(t *testing.T) {
		input := "[package]\nname = \"demo\"\n\n[target.'cfg(unix)'.dependencies]\nlibc = \"0.2\"\n"
		doc, err := Parse("Cargo.toml", []byte(input))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		tbl := doc.EnsureTable("target", "cfg(unix)", "dev-dependencies")
		if !tbl.Created() {
			t.Error("new table not reported as created")
		}
		tbl.Set("tempfile", NewString("3"))

		got := string(doc.Serialize())
		want := input + "\n[target.\"cfg(unix)\".dev-dependencies]\ntempfile = \"3\"\n"
		if got != want {
			t.Errorf("Serialize() = %q, want %q", got, want)
		}
	})

	t.Run("new table in empty document", func(t *testing.T) {
		doc, err := Parse("Cargo.toml", nil)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		doc.EnsureTable("dependencies").Set("serde", NewString("1"))
		want := "[dependencies]\nserde = \"1\"\n"
		if got := string(doc.Serialize()); got != want {
			t.Errorf("Serialize() = %q, want %q", got, want)
		}
	})
}

func TestRemove(t *testing.T) {
	doc, err := Parse("Cargo.toml", []byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	deps := doc.Table("dependencies")
	if !deps.Remove("anyhow") {
		t.Fatal("Remove(anyhow) = false, want true")
	}
	if deps.Remove("anyhow") {
		t.Error("second Remove(anyhow) = true, want false")
	}
	got := string(doc.Serialize())
	if strings.Contains(got, "anyhow") {
		t.Errorf("anyhow still present after removal: %q", got)
	}
	if !strings.Contains(got, "serde") || !strings.Contains(got, "[dependencies]") {
		t.Errorf("unrelated content disturbed: %q", got)
	}
}

func TestArrayEdits(t *testing.T) {
	t.Run("filter single line", func(t *testing.T) {
		doc, err := Parse("Cargo.toml", []byte("[features]\ndefault = [\"std\", \"serde/derive\", \"rayon\"]\n"))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		def := doc.Table("features").Get("default")
		changed := def.Filter(func(v *Value) bool {
			s, _ := v.AsString()
			return !strings.HasPrefix(s, "serde/")
		})
		if !changed {
			t.Fatal("Filter() = false, want true")
		}
		want := "[features]\ndefault = [\"std\", \"rayon\"]\n"
		if got := string(doc.Serialize()); got != want {
			t.Errorf("Serialize() = %q, want %q", got, want)
		}
	})

	t.Run("append", func(t *testing.T) {
		doc, err := Parse("Cargo.toml", []byte("[features]\ndefault = [\"std\"]\n"))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		doc.Table("features").Get("default").Append(NewString("serde"))
		want := "[features]\ndefault = [\"std\", \"serde\"]\n"
		if got := string(doc.Serialize()); got != want {
			t.Errorf("Serialize() = %q, want %q", got, want)
		}
	})
}

func TestGetPath(t *testing.T) {
	input := "[dependencies]\nserde = { version = \"1.0\", optional = true }\nrand.version = \"0.8\"\n"
	doc, err := Parse("Cargo.toml", []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	deps := doc.Table("dependencies")

	if v := deps.GetPath("serde", "version"); v == nil {
		t.Error("GetPath(serde, version) = nil")
	} else if s, _ := v.AsString(); s != "1.0" {
		t.Errorf("GetPath(serde, version) = %q, want %q", s, "1.0")
	}
	if v := deps.GetPath("rand", "version"); v == nil {
		t.Error("GetPath(rand, version) = nil")
	} else if s, _ := v.AsString(); s != "0.8" {
		t.Errorf("GetPath(rand, version) = %q, want %q", s, "0.8")
	}
	if v := deps.GetPath("serde", "missing"); v != nil {
		t.Errorf("GetPath(serde, missing) = %v, want nil", v)
	}
}

func TestArrayTables(t *testing.T) {
	input := "version = 3\n\n[[package]]\nname = \"a\"\nversion = \"1.0.0\"\n\n[[package]]\nname = \"b\"\nversion = \"2.0.0\"\n"
	doc, err := Parse("Cargo.lock", []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	pkgs := doc.ArrayTables("package")
	if len(pkgs) != 2 {
		t.Fatalf("ArrayTables(package) len = %d, want 2", len(pkgs))
	}
	pkgs[1].Set("version", NewString("2.0.1"))
	want := strings.Replace(input, "version = \"2.0.0\"", "version = \"2.0.1\"", 1)
	if got := string(doc.Serialize()); got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestRemoveFieldKeepsBracePadding(t *testing.T) {
	doc, err := Parse("Cargo.toml", []byte("[dependencies]\nserde = { version = \"1\", features = [\"derive\"] }\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	serde := doc.Table("dependencies").Get("serde")
	if !serde.RemoveField("features") {
		t.Fatal("RemoveField(features) = false, want true")
	}
	want := "[dependencies]\nserde = { version = \"1\" }\n"
	if got := string(doc.Serialize()); got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestDottedKeyEdits(t *testing.T) {
	input := "[dependencies]\nserde.version = \"1.0\"\nserde.features = [\"derive\"]\ntokio = \"1\"\n"
	doc, err := Parse("Cargo.toml", []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	deps := doc.Table("dependencies")

	deps.SetPath([]string{"serde", "version"}, NewString("1.2"))
	want := strings.Replace(input, `serde.version = "1.0"`, `serde.version = "1.2"`, 1)
	if got := string(doc.Serialize()); got != want {
		t.Errorf("after SetPath: Serialize() = %q, want %q", got, want)
	}

	// A new dotted entry lands next to its siblings, not at the end.
	deps.SetPath([]string{"serde", "optional"}, NewBool(true))
	want = strings.Replace(want,
		"serde.features = [\"derive\"]\n",
		"serde.features = [\"derive\"]\nserde.optional = true\n", 1)
	if got := string(doc.Serialize()); got != want {
		t.Errorf("after dotted insert: Serialize() = %q, want %q", got, want)
	}

	if !deps.RemovePath("serde", "optional") {
		t.Fatal("RemovePath(serde, optional) = false, want true")
	}
	if deps.RemovePath("serde", "optional") {
		t.Error("second RemovePath(serde, optional) = true, want false")
	}
	want = strings.Replace(want, "serde.optional = true\n", "", 1)
	if got := string(doc.Serialize()); got != want {
		t.Errorf("after RemovePath: Serialize() = %q, want %q", got, want)
	}
}
