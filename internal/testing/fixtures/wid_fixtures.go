package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vvka-141/widload/internal/files/filesystem"
	"github.com/vvka-141/widload/pkg/widload"
)

// FactRow is one observation of a data file. Empty strings are written as
// empty fields, which COPY loads as NULL.
type FactRow struct {
	Variable   string
	Percentile string
	Year       int
	Value      string
	Age        string
	Pop        string
}

// Metadata is one metadata row keyed by column name. Columns left out are
// written empty.
type Metadata map[string]string

// WIDFixtureBuilder provides a fluent API for building input directories in
// the WID export layout.
//
// Example usage:
//
//	files := NewWIDFixtureBuilder().
//	    AddCountry("FR").
//	    AddFacts("FR", FactRow{Variable: "sptinc", Percentile: "p0p100", Year: 2020, Value: "0.5"}).
//	    AddMetadata("FR", Metadata{"variable": "sptinc", "unit": "share"}).
//	    Build()
type WIDFixtureBuilder struct {
	countries []string
	files     map[string]string // name -> content
}

// NewWIDFixtureBuilder creates a builder with an empty country list.
func NewWIDFixtureBuilder() *WIDFixtureBuilder {
	return &WIDFixtureBuilder{files: make(map[string]string)}
}

// AddCountry appends codes to the country reference file.
func (b *WIDFixtureBuilder) AddCountry(codes ...string) *WIDFixtureBuilder {
	b.countries = append(b.countries, codes...)
	return b
}

// AddFacts appends rows to the data file of code, creating it with a header.
func (b *WIDFixtureBuilder) AddFacts(code string, rows ...FactRow) *WIDFixtureBuilder {
	name := widload.DataFileName(widload.DefaultDataFilePattern, code)
	content, ok := b.files[name]
	if !ok {
		content = strings.Join(widload.FactColumnNames(), ";") + "\n"
	}
	for _, r := range rows {
		content += fmt.Sprintf("%s;%s;%s;%d;%s;%s;%s\n", code, r.Variable, r.Percentile, r.Year, r.Value, r.Age, r.Pop)
	}
	b.files[name] = content
	return b
}

// AddMetadata appends rows to WID_metadata_{code}.csv. The country column
// defaults to code.
func (b *WIDFixtureBuilder) AddMetadata(code string, rows ...Metadata) *WIDFixtureBuilder {
	name := fmt.Sprintf("WID_metadata_%s.csv", code)
	content, ok := b.files[name]
	if !ok {
		content = strings.Join(widload.MetadataColumns, ";") + "\n"
	}
	for _, r := range rows {
		fields := make([]string, len(widload.MetadataColumns))
		for i, c := range widload.MetadataColumns {
			fields[i] = r[c]
		}
		if fields[0] == "" {
			fields[0] = code
		}
		content += strings.Join(fields, ";") + "\n"
	}
	b.files[name] = content
	return b
}

// AddFile adds an arbitrary file, replacing any generated one.
func (b *WIDFixtureBuilder) AddFile(name, content string) *WIDFixtureBuilder {
	b.files[name] = content
	return b
}

// Build returns the accumulated files by name, including the country reference file.
func (b *WIDFixtureBuilder) Build() map[string]string {
	out := make(map[string]string, len(b.files)+1)
	for name, content := range b.files {
		out[name] = content
	}
	if _, custom := out[widload.DefaultCountriesFile]; !custom {
		var sb strings.Builder
		sb.WriteString("alpha2;titlename\n")
		for _, c := range b.countries {
			fmt.Fprintf(&sb, "%s;%s\n", c, c)
		}
		out[widload.DefaultCountriesFile] = sb.String()
	}
	return out
}

// BuildFS returns the files in an in-memory filesystem under dir.
func (b *WIDFixtureBuilder) BuildFS(dir string) *filesystem.MemoryFileSystem {
	fsys := filesystem.NewMemoryFileSystem()
	for name, content := range b.Build() {
		fsys.AddFile(filepath.Join(dir, name), []byte(content))
	}
	return fsys
}

// WriteDir writes the files into dir on disk.
func (b *WIDFixtureBuilder) WriteDir(dir string) error {
	files := b.Build()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(files[name]), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Pre-built Fixtures
// ============================================================================

// FranceWashington has two partitions whose codes differ in case and
// punctuation, plus matching metadata. One US-WA fact row has no metadata.
func FranceWashington() *WIDFixtureBuilder {
	return NewWIDFixtureBuilder().
		AddCountry("FR", "US-WA").
		AddFacts("FR",
			FactRow{Variable: "sptinc", Percentile: "p0p100", Year: 2019, Value: "0.48", Age: "992", Pop: "j"},
			FactRow{Variable: "sptinc", Percentile: "p0p100", Year: 2020, Value: "0.5", Age: "992", Pop: "j"},
		).
		AddFacts("US-WA",
			FactRow{Variable: "sptinc", Percentile: "p0p100", Year: 2020, Value: "0.4", Age: "992", Pop: "j"},
			FactRow{Variable: "anninc", Percentile: "p0p100", Year: 2020, Value: "", Age: "999", Pop: "i"},
		).
		AddMetadata("FR", Metadata{"variable": "sptinc", "age": "992", "pop": "j", "shortname": "Income share", "unit": "share", "source": "WID", "method": "m1"}).
		AddMetadata("US-WA", Metadata{"variable": "sptinc", "age": "992", "pop": "j", "shortname": "Income share", "unit": "share", "source": "WID", "method": "m1"})
}

// SampledDuplicates has three metadata files of distinct sizes describing
// the same (variable, age, pop) with different units.
func SampledDuplicates() *WIDFixtureBuilder {
	dup := func(unit, source string) Metadata {
		return Metadata{"variable": "sptinc", "age": "992", "pop": "j", "unit": unit, "source": source}
	}
	return NewWIDFixtureBuilder().
		AddMetadata("AA", dup("small", "s")).
		AddMetadata("BB", dup("largest", "a long source description"), Metadata{"variable": "anninc", "age": "999", "pop": "i"}).
		AddMetadata("CC", dup("middle", "medium source"))
}

// MalformedMetadata has three metadata files, of which the middle one has a
// row with too few fields.
func MalformedMetadata() *WIDFixtureBuilder {
	return NewWIDFixtureBuilder().
		AddMetadata("AA", Metadata{"variable": "v1"}).
		AddFile("WID_metadata_BB.csv", strings.Join(widload.MetadataColumns, ";")+"\nBB;v2;only;four\n").
		AddMetadata("CC", Metadata{"variable": "v3"})
}

// MalformedFacts extends FranceWashington with a DE partition whose data
// file has a non-integer year after one valid row.
func MalformedFacts() *WIDFixtureBuilder {
	header := strings.Join(widload.FactColumnNames(), ";")
	return FranceWashington().
		AddCountry("DE").
		AddFile(widload.DataFileName(widload.DefaultDataFilePattern, "DE"),
			header+"\nDE;sptinc;p0p100;2020;0.3;992;j\nDE;sptinc;p0p100;twenty;0.3;992;j\n")
}
