package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/helixir/pubmed-search/internal/domain"
)

var runDate = time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

func fullRecord() domain.ArticleRecord {
	return domain.ArticleRecord{
		PMID:          "12345678",
		PMCID:         domain.Some("PMC7654321"),
		Title:         domain.Some("CRISPR & gene_editing: 100% {new}"),
		Abstract:      "An abstract.",
		Authors:       []string{"Smith JA", "Johnson E", "van der Berg K"},
		Year:          domain.Some("2023"),
		Journal:       domain.Some("Nature"),
		DOI:           domain.Some("10.1038/abc"),
		PDFLink:       domain.Some("https://www.ncbi.nlm.nih.gov/pmc/articles/PMC7654321/pdf/"),
		CitationCount: domain.Some(42),
	}
}

func sparseRecord() domain.ArticleRecord {
	return domain.ArticleRecord{
		PMID:    "87654321",
		Authors: []string{},
	}
}

func TestWriteCSV(t *testing.T) {
	t.Run("header and unknown placeholders", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, []domain.ArticleRecord{fullRecord(), sparseRecord()}))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "PMID,PMC_ID,Title,Citation_Count,Authors,Journal,Year,DOI,DOI_Link,PDF_Link,PubMed_URL", lines[0])
		assert.Equal(t,
			"87654321,unknown,unknown,unknown,,unknown,unknown,unknown,unknown,unknown,https://pubmed.ncbi.nlm.nih.gov/87654321/",
			lines[2])
	})

	t.Run("round trip through ReadCSV", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, []domain.ArticleRecord{fullRecord()}))

		rows, err := ReadCSV(&buf)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		row := rows[0]
		assert.Equal(t, "12345678", row[ColPMID])
		assert.Equal(t, "PMC7654321", row[ColPMCID])
		assert.Equal(t, "CRISPR & gene_editing: 100% {new}", row[ColTitle])
		assert.Equal(t, "42", row[ColCitationCount])
		assert.Equal(t, "Smith JA, Johnson E, van der Berg K", row[ColAuthors])
		assert.Equal(t, "https://doi.org/10.1038/abc", row[ColDOILink])
		assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12345678/", row[ColPubMedURL])
	})

	t.Run("empty input writes header only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, nil))
		rows, err := ReadCSV(&buf)
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.NotNil(t, rows)
	})

	t.Run("read empty stream", func(t *testing.T) {
		rows, err := ReadCSV(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestCSVFileName(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"spaces collapse", "CRISPR   gene editing", "pubmed_results_CRISPR_gene_editing_20240309.csv"},
		{"punctuation dropped", `cancer AND (immunotherapy[Title])`, "pubmed_results_cancer_AND_immunotherapyTitle_20240309.csv"},
		{"hyphen kept", "covid-19", "pubmed_results_covid-19_20240309.csv"},
		{"non-ascii letters kept", "Müller syndrome", "pubmed_results_Müller_syndrome_20240309.csv"},
		{"non-breaking space collapses", "Ménière\u00a0disease", "pubmed_results_Ménière_disease_20240309.csv"},
		{"capped at fifty", strings.Repeat("a", 80), "pubmed_results_" + strings.Repeat("a", 50) + "_20240309.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CSVFileName(tt.query, runDate))
		})
	}
}

func TestWriteMetadata(t *testing.T) {
	md := NewMetadata("crispr", runDate, 10, "pubmed_results_crispr_20240309.csv",
		[]domain.ArticleRecord{fullRecord(), sparseRecord()})

	var buf bytes.Buffer
	require.NoError(t, WriteMetadata(&buf, md))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "crispr", got["search_query"])
	assert.Equal(t, "2024-03-09T14:30:05Z", got["search_date"])
	assert.EqualValues(t, 10, got["total_results"])
	assert.EqualValues(t, 2, got["exported_articles"])
	assert.Equal(t, "pubmed_results_crispr_20240309.csv", got["csv_file"])

	articles := got["articles"].([]any)
	require.Len(t, articles, 2)
	first := articles[0].(map[string]any)
	assert.EqualValues(t, 42, first["citation_count"])
	assert.Equal(t, "Smith JA, Johnson E, van der Berg K", first["authors"])
	second := articles[1].(map[string]any)
	assert.Equal(t, "unknown", second["citation_count"])
	assert.Equal(t, "unknown", second["doi_link"])
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/87654321/", second["url"])
}

func TestWriteJSON(t *testing.T) {
	t.Run("array of articles", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteJSON(&buf, []domain.ArticleRecord{fullRecord()}))

		var got []Article
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "12345678", got[0].PMID)
		assert.Equal(t, 42, got[0].CitationCount.OrElse(0))
	})

	t.Run("nil records encode as empty array", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteJSON(&buf, nil))
		assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
	})
}

func TestWriteHTML(t *testing.T) {
	rec := fullRecord()
	rec.Title = domain.Some(`<script>alert("x")</script>`)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, Report{
		Query:     "a < b",
		Generated: runDate,
		Records:   []domain.ArticleRecord{rec, sparseRecord()},
	}))
	out := buf.String()

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "a &lt; b")
	assert.Contains(t, out, "<strong>Results Found:</strong> 2")
	assert.Contains(t, out, "2024-03-09 14:30:05")
	assert.Contains(t, out, "1. &lt;script&gt;")
	assert.Contains(t, out, "2. unknown")
	assert.Contains(t, out, "PMID: 87654321")
	assert.Contains(t, out, "Cited by: 42")
	assert.Contains(t, out, `href="https://pubmed.ncbi.nlm.nih.gov/12345678/"`)
}

func TestToBibTeX(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		got := ToBibTeX(fullRecord())
		assert.True(t, strings.HasPrefix(got, "@article{PMID12345678,\n"))
		assert.Contains(t, got, `title = {CRISPR \& gene\_editing: 100\% \{new\}},`)
		assert.Contains(t, got, "author = {Smith JA and Johnson E and van der Berg K},")
		assert.Contains(t, got, "year = {2023},")
		assert.Contains(t, got, "journal = {Nature},")
		assert.Contains(t, got, "doi = {10.1038/abc},")
		assert.Contains(t, got, "url = {https://pubmed.ncbi.nlm.nih.gov/12345678/}\n}")
	})

	t.Run("sparse record omits journal and doi", func(t *testing.T) {
		got := ToBibTeX(sparseRecord())
		assert.Contains(t, got, "title = {unknown},")
		assert.Contains(t, got, "author = {unknown},")
		assert.NotContains(t, got, "journal")
		assert.NotContains(t, got, "doi")
	})

	t.Run("list separated by blank line", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBibTeX(&buf, []domain.ArticleRecord{fullRecord(), sparseRecord()}))
		assert.Equal(t, 2, strings.Count(buf.String(), "@article{"))
		assert.Contains(t, buf.String(), "}\n\n@article{PMID87654321,")
	})
}

func TestEscapeLatex(t *testing.T) {
	assert.Equal(t, `a\textbackslash{}b`, escapeLatex(`a\b`))
	assert.Equal(t, `\textasciitilde{}\textasciicircum{}\#\$`, escapeLatex("~^#$"))
}

func TestWriteCSLYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSLYAML(&buf, []domain.ArticleRecord{fullRecord(), sparseRecord()}))

	var items []CSLItem
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "PMID12345678", first.ID)
	assert.Equal(t, "article-journal", first.Type)
	assert.Equal(t, "Nature", first.ContainerTitle)
	assert.Equal(t, "10.1038/abc", first.DOI)
	assert.Equal(t, "PMC7654321", first.PMCID)
	require.NotNil(t, first.Issued)
	assert.Equal(t, [][]int{{2023}}, first.Issued.DateParts)
	require.Len(t, first.Author, 3)
	assert.Equal(t, CSLName{Family: "Smith", Given: "JA"}, first.Author[0])
	assert.Equal(t, CSLName{Family: "van der Berg", Given: "K"}, first.Author[2])

	second := items[1]
	assert.Empty(t, second.Title)
	assert.Nil(t, second.Issued)
	assert.Empty(t, second.Author)
	assert.Equal(t, "87654321", second.PMID)
}

func TestParseAuthorName(t *testing.T) {
	assert.Equal(t, CSLName{Literal: "Consortium"}, parseAuthorName("Consortium"))
	assert.Equal(t, CSLName{}, parseAuthorName("  "))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"csv": FormatCSV, "JSON": FormatJSON, " html ": FormatHTML,
		"bibtex": FormatBibTeX, "bib": FormatBibTeX, "yaml": FormatYAML, "yml": FormatYAML,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	formats, err := ParseFormats([]string{"csv", "bib", "bibtex", "json"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV, FormatBibTeX, FormatJSON}, formats)
}

func TestFormat_FileName(t *testing.T) {
	assert.Equal(t, "pubmed_results_crispr_20240309.bib", FormatBibTeX.FileName("crispr", runDate))
	assert.Equal(t, "pubmed_results_crispr_20240309.csv", FormatCSV.FileName("crispr", runDate))
}

func TestWrite(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, f, "q", runDate, []domain.ArticleRecord{fullRecord()}))
			assert.Contains(t, buf.String(), "12345678")
		})
	}

	err := Write(&bytes.Buffer{}, Format("docx"), "q", runDate, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSaveRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	run := Run{Query: "crispr cas9", Date: runDate, Total: 5, Records: []domain.ArticleRecord{fullRecord()}}

	paths, err := SaveRun(dir, run, []Format{FormatCSV, FormatBibTeX, FormatHTML})
	require.NoError(t, err)
	require.Len(t, paths, 4)
	assert.Equal(t, filepath.Join(dir, "pubmed_results_crispr_cas9_20240309.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, MetadataFileName), paths[1])
	assert.Equal(t, filepath.Join(dir, "pubmed_results_crispr_cas9_20240309.bib"), paths[2])
	assert.Equal(t, filepath.Join(dir, "pubmed_results_crispr_cas9_20240309.html"), paths[3])

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	var md Metadata
	require.NoError(t, json.Unmarshal(data, &md))
	assert.Equal(t, "pubmed_results_crispr_cas9_20240309.csv", md.CSVFile)
	assert.Equal(t, 5, md.TotalResults)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "no temp files left behind")
}
