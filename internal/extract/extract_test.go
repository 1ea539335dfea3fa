package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiumlab/studium/internal/domain"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestText_Plain(t *testing.T) {
	text, err := Text("notes.txt", []byte("cell biology basics"))
	require.NoError(t, err)
	assert.Equal(t, "cell biology basics", text)
}

func TestText_PlainInvalidUTF8(t *testing.T) {
	_, err := Text("notes.txt", []byte{0xff, 0xfe, 0xfd})

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeExtractionFailed, derr.Code)
}

func TestText_UnsupportedExtension(t *testing.T) {
	_, err := Text("image.png", []byte("not really"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestText_Docx(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`
	data := buildZip(t, map[string]string{"word/document.xml": docXML})

	text, err := Text("lecture.docx", data)
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph\n")
	assert.Contains(t, text, "Second paragraph\n")
}

func TestText_DocxTable(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Grading scheme</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Exam</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>60%</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Project</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>40%</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`
	data := buildZip(t, map[string]string{"word/document.xml": docXML})

	text, err := Text("syllabus.docx", data)
	require.NoError(t, err)
	assert.Contains(t, text, "Grading scheme\n")
	assert.Contains(t, text, "Exam\t60%\t\n")
	assert.Contains(t, text, "Project\t40%\t\n")
}

func TestText_DocxMissingDocumentPart(t *testing.T) {
	data := buildZip(t, map[string]string{"other.xml": "<x/>"})

	_, err := Text("lecture.docx", data)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeExtractionFailed, derr.Code)
}

func TestText_DocxBadMagic(t *testing.T) {
	_, err := Text("lecture.docx", []byte("plain text pretending"))

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeExtractionFailed, derr.Code)
}

func TestText_Pptx(t *testing.T) {
	slide := `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>
    <p:sp><p:txBody><a:p><a:r><a:t>Slide one title</a:t></a:r></a:p></p:txBody></p:sp>
  </p:spTree></p:cSld>
</p:sld>`
	slide2 := `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>
    <p:sp><p:txBody><a:p><a:r><a:t>Slide two body</a:t></a:r></a:p></p:txBody></p:sp>
  </p:spTree></p:cSld>
</p:sld>`
	data := buildZip(t, map[string]string{
		"ppt/slides/slide1.xml": slide,
		"ppt/slides/slide2.xml": slide2,
	})

	text, err := Text("deck.pptx", data)
	require.NoError(t, err)

	one := bytes.Index([]byte(text), []byte("Slide one title"))
	two := bytes.Index([]byte(text), []byte("Slide two body"))
	require.GreaterOrEqual(t, one, 0)
	require.GreaterOrEqual(t, two, 0)
	assert.Less(t, one, two)
}

func TestText_PdfBadMagic(t *testing.T) {
	_, err := Text("paper.pdf", []byte("not a pdf at all"))

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeExtractionFailed, derr.Code)
}
