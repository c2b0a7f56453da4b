package tsv_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ankitagger/ankitagger/internal/tsv"
	"github.com/ankitagger/ankitagger/pkg/models"
)

var _ = Describe("TSV writing", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "tsv-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Cell", func() {
		It("converts newlines to <br> and tabs to spaces", func() {
			Expect(tsv.Cell("line one\nline two\twith tab")).To(Equal("line one<br>line two with tab"))
		})

		It("drops carriage returns", func() {
			Expect(tsv.Cell("a\r\nb")).To(Equal("a<br>b"))
		})
	})

	Describe("WriteRows", func() {
		It("writes a header line followed by tab-joined rows", func() {
			path := filepath.Join(tempDir, "out.txt")
			err := tsv.WriteRows(path, models.Row{"Question", "Answer"}, []models.Row{
				{"q1", "a1"},
				{"q2", "a2"},
			})
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			Expect(lines).To(Equal([]string{"Question\tAnswer", "q1\ta1", "q2\ta2"}))
		})
	})

	Describe("snapshots", func() {
		It("round-trips records through the JSON snapshot", func() {
			records := []models.Record{
				{"question": "q1", "answer": "a1"},
				{"question": "q2", "answer": "a2"},
			}

			path, err := tsv.SaveJSONSnapshot(records, tempDir, "mydoc", "text_analysis")
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Base(path)).To(Equal("mydoc_text_analysis_temp_results.json"))

			loaded, err := tsv.LoadRecords(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(2))
			Expect(loaded[0].Question()).To(Equal("q1"))
			Expect(loaded[1].Answer()).To(Equal("a2"))
		})

		It("writes nothing for an empty record list", func() {
			path, err := tsv.SaveJSONSnapshot(nil, tempDir, "mydoc", "step")
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeEmpty())

			entries, err := os.ReadDir(tempDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("overwrites the previous snapshot for the same step", func() {
			first := []models.Record{{"question": "q1", "answer": "a1"}}
			second := []models.Record{
				{"question": "q1", "answer": "a1"},
				{"question": "q2", "answer": "a2"},
			}

			_, err := tsv.SaveJSONSnapshot(first, tempDir, "doc", "step")
			Expect(err).NotTo(HaveOccurred())
			path, err := tsv.SaveJSONSnapshot(second, tempDir, "doc", "step")
			Expect(err).NotTo(HaveOccurred())

			loaded, err := tsv.LoadRecords(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(2))
		})
	})

	Describe("VisualRecords", func() {
		It("flattens page references into string media cells", func() {
			records := []models.Record{
				{
					"question_text":                 "What is shown?",
					"answer_text":                   "A heart.",
					"question_page":                 float64(1),
					"relevant_question_image_pages": []interface{}{float64(3)},
					"answer_page":                   float64(2),
				},
			}
			pageImages := map[int]string{
				1: "doc_page_001.jpg",
				2: "doc_page_002.jpg",
				3: "doc_page_003.jpg",
			}

			flat := tsv.VisualRecords(records, pageImages)
			Expect(flat).To(HaveLen(1))
			Expect(flat[0].Question()).To(Equal("What is shown?"))
			Expect(flat[0].String("QuestionMedia")).To(Equal(`<img src="doc_page_001.jpg"> <img src="doc_page_003.jpg">`))
			Expect(flat[0].String("AnswerMedia")).To(Equal(`<img src="doc_page_002.jpg">`))
		})

		It("keeps media cells through tagging into the final tagged TSV", func() {
			records := []models.Record{
				{
					"question_text": "q",
					"answer_text":   "a",
					"question_page": float64(1),
				},
			}
			flat := tsv.VisualRecords(records, map[int]string{1: "doc_page_001.jpg"})
			flat[0].SetTags("#anatomy")

			path := filepath.Join(tempDir, "final.txt")
			Expect(tsv.GenerateTagged(flat, path)).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			Expect(lines[0]).To(Equal("Question\tAnswer\tTags\tQuestionMedia\tAnswerMedia"))
			Expect(lines[1]).To(ContainSubstring(`<img src="doc_page_001.jpg">`))
			Expect(lines[1]).To(ContainSubstring("#anatomy"))
		})
	})

	Describe("GenerateVisual", func() {
		It("builds media cells from context and relevant pages, deduplicated and sorted", func() {
			records := []models.Record{
				{
					"question_text":                 "What is shown?",
					"answer_text":                   "A heart.",
					"question_page":                 float64(1),
					"answer_page":                   float64(2),
					"relevant_question_image_pages": []interface{}{float64(1), float64(3)},
					"relevant_answer_image_pages":   []interface{}{float64(2)},
				},
			}
			pageImages := map[int]string{
				1: "doc_page_001.jpg",
				2: "doc_page_002.jpg",
				3: "doc_page_003.jpg",
			}

			path, err := tsv.GenerateVisual(records, tempDir, "doc", pageImages)
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Base(path)).To(Equal("doc_visual_anki.txt"))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			Expect(lines[0]).To(Equal("Question\tQuestionMedia\tAnswer\tAnswerMedia"))

			cells := strings.Split(lines[1], "\t")
			Expect(cells[0]).To(Equal("What is shown?"))
			Expect(cells[1]).To(Equal(`<img src="doc_page_001.jpg"> <img src="doc_page_003.jpg">`))
			Expect(cells[3]).To(Equal(`<img src="doc_page_002.jpg">`))
		})

		It("leaves media cells empty for pages without rendered images", func() {
			records := []models.Record{
				{"question_text": "q", "answer_text": "a", "question_page": float64(9)},
			}

			path, err := tsv.GenerateVisual(records, tempDir, "doc", map[int]string{})
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			Expect(strings.Split(lines[1], "\t")).To(Equal([]string{"q", "", "a", ""}))
		})
	})

	Describe("GenerateTextAnalysis", func() {
		It("writes the two-column layout", func() {
			records := []models.Record{{"question": "q1", "answer": "a1\nsecond line"}}

			path, err := tsv.GenerateTextAnalysis(records, tempDir, "book")
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Base(path)).To(Equal("book_text_analysis.txt"))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			Expect(lines[0]).To(Equal("Question\tAnswer"))
			Expect(lines[1]).To(Equal("q1\ta1<br>second line"))
		})
	})

	Describe("TaggedHeader", func() {
		It("puts priority columns first and sorts the rest", func() {
			records := []models.Record{{
				"question_text": "q",
				"answer_text":   "a",
				"Tags":          "#anatomy",
				"zeta":          "z",
				"alpha":         "x",
				"_internal":     "hidden",
			}}

			header := tsv.TaggedHeader(records)
			Expect(header).To(Equal(models.Row{"question_text", "answer_text", "Tags", "alpha", "zeta"}))
		})

		It("always includes Tags", func() {
			header := tsv.TaggedHeader([]models.Record{{"question": "q", "answer": "a"}})
			Expect(header).To(ContainElement("Tags"))
		})

		It("falls back to a minimal header for no records", func() {
			Expect(tsv.TaggedHeader(nil)).To(Equal(models.Row{"Question", "Answer", "Tags"}))
		})
	})

	Describe("GenerateTagged", func() {
		It("writes every record under the derived header", func() {
			records := []models.Record{
				{"question": "q1", "answer": "a1", "Tags": "#cardiology"},
				{"question": "q2", "answer": "a2", "Tags": ""},
			}

			path := filepath.Join(tempDir, "tagged.txt")
			Expect(tsv.GenerateTagged(records, path)).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			Expect(lines).To(HaveLen(3))
			Expect(lines[0]).To(ContainSubstring("Tags"))
			Expect(lines[1]).To(ContainSubstring("#cardiology"))
		})
	})
})

var _ = Describe("ReadTSV", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "tsv-read-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	write := func(name, content string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	It("maps rows onto the header columns", func() {
		path := write("in.txt", "Question\tAnswer\nq1\ta1\nq2\ta2\n")

		records, err := tsv.ReadTSV(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].String("Question")).To(Equal("q1"))
		Expect(records[1].String("Answer")).To(Equal("a2"))
	})

	It("pads short rows with empty cells", func() {
		path := write("short.txt", "Question\tAnswer\tTags\nq1\ta1\n")

		records, err := tsv.ReadTSV(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(records[0].String("Tags")).To(Equal(""))
	})

	It("folds extra cells into the last column", func() {
		path := write("long.txt", "Question\tAnswer\nq1\ta1\textra\n")

		records, err := tsv.ReadTSV(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(records[0].String("Answer")).To(Equal("a1 extra"))
	})

	It("skips blank lines", func() {
		path := write("blank.txt", "Question\tAnswer\n\nq1\ta1\n\n")

		records, err := tsv.ReadTSV(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
	})

	It("rejects an empty file", func() {
		path := write("empty.txt", "")

		_, err := tsv.ReadTSV(path)
		Expect(err).To(HaveOccurred())
	})

	It("round-trips GenerateTagged output", func() {
		records := []models.Record{{"question": "q1", "answer": "a1", "Tags": "#anatomy"}}
		path := filepath.Join(tempDir, "tagged.txt")
		Expect(tsv.GenerateTagged(records, path)).To(Succeed())

		loaded, err := tsv.ReadTSV(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
		Expect(loaded[0].Question()).To(Equal("q1"))
		Expect(loaded[0].Tags()).To(Equal("#anatomy"))
	})
})
