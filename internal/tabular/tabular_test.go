package tabular

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/widload/internal/files/filesystem"
	"github.com/vvka-141/widload/pkg/widload"
)

func TestReadCountryCodes(t *testing.T) {
	input := "\uFEFFalpha2;titlename;shortname\n" +
		"FR;France;France\n" +
		"US-WA;Washington;Washington\n" +
		";Empty;Empty\n" +
		"FR;France again;France\n" +
		"fr;lowercase;fr\n"

	codes, err := ReadCountryCodes(strings.NewReader(input), widload.CountryCodeColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"FR", "US-WA", "fr"}, codes)
}

func TestReadCountryCodes_MissingColumn(t *testing.T) {
	_, err := ReadCountryCodes(strings.NewReader("code;name\nFR;France\n"), "alpha2")
	assert.True(t, errors.Is(err, ErrBadHeader))

	_, err = ReadCountryCodes(strings.NewReader(""), "alpha2")
	assert.True(t, errors.Is(err, ErrBadHeader))
}

func TestSplitHeader(t *testing.T) {
	header, rest, err := SplitHeader(strings.NewReader(" Country ;variable;percentile;year;value\nFR;sptinc992j;p0p100;2000;0.1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "variable", "percentile", "year", "value"}, header)

	body, err := io.ReadAll(rest)
	require.NoError(t, err)
	assert.Equal(t, "FR;sptinc992j;p0p100;2000;0.1\n", string(body))
}

func TestSplitHeader_HeaderOnly(t *testing.T) {
	header, rest, err := SplitHeader(strings.NewReader("country;year"))
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "year"}, header)
	body, _ := io.ReadAll(rest)
	assert.Empty(t, body)

	_, _, err = SplitHeader(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrBadHeader))
}

func TestValidateFactHeader(t *testing.T) {
	known := widload.FactColumnNames()
	required := widload.RequiredFactColumns

	tests := []struct {
		name    string
		header  []string
		wantErr bool
	}{
		{"full", known, false},
		{"reordered subset", []string{"year", "country", "percentile", "variable", "value"}, false},
		{"unknown column", append([]string{"extra"}, known...), true},
		{"missing year", []string{"country", "variable", "percentile", "value"}, true},
		{"duplicate", []string{"country", "variable", "percentile", "year", "year"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFactHeader(tt.header, known, required)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrBadHeader), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadProjected(t *testing.T) {
	input := "unit;variable;country;ignored\n" +
		"EUR;sptinc;FR;x\n" +
		";wealth;US-WA;y\n"

	rows, err := ReadProjected(context.Background(), strings.NewReader(input), []string{"country", "variable", "unit"})
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"FR", "sptinc", "EUR"},
		{"US-WA", "wealth", ""},
	}, rows)
}

func TestReadProjected_BareQuotesInField(t *testing.T) {
	input := "country;variable;method\n" +
		"FR;sptinc;uses the \"DINA\" method\n" +
		"US-WA;wealth;\"quoted; with delimiter\"\n"

	rows, err := ReadProjected(context.Background(), strings.NewReader(input), []string{"country", "method"})
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"FR", `uses the "DINA" method`},
		{"US-WA", "quoted; with delimiter"},
	}, rows)
}

func TestReadProjected_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := ReadProjected(ctx, strings.NewReader("country;variable\nFR;x\n"), []string{"country", "unit"})
	assert.True(t, errors.Is(err, ErrBadHeader), "missing projected column")

	_, err = ReadProjected(ctx, strings.NewReader("country;variable\nFR;x;extra\n"), []string{"country"})
	assert.Error(t, err, "ragged row")

	_, err = ReadProjected(ctx, strings.NewReader("country;variable\n\"FR;x\n"), []string{"country"})
	assert.Error(t, err, "unterminated quote swallows the row")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ReadProjected(cancelled, strings.NewReader("country\nFR\n"), []string{"country"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOpen_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("alpha2\nFR\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	fsys := filesystem.NewMemoryFileSystem()
	fsys.AddFile("/in/WID_countries.csv.gz", buf.Bytes())
	fsys.AddFile("/in/WID_countries.csv", []byte("alpha2\nDE\n"))
	fsys.AddFile("/in/broken.csv.gz", []byte("not gzip"))

	r, err := Open(fsys, "/in/WID_countries.csv.gz")
	require.NoError(t, err)
	codes, err := ReadCountryCodes(r, "alpha2")
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, []string{"FR"}, codes)

	r, err = Open(fsys, "/in/WID_countries.csv")
	require.NoError(t, err)
	codes, err = ReadCountryCodes(r, "alpha2")
	require.NoError(t, err)
	assert.Equal(t, []string{"DE"}, codes)

	_, err = Open(fsys, "/in/broken.csv.gz")
	assert.Error(t, err)
}
