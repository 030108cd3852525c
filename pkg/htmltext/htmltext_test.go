package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Strip_RemovesTagsAndEntities(t *testing.T) {

	raw := "&lt;p&gt;Write &lt;b&gt;Go&lt;/b&gt; services.&lt;/p&gt;"
	assert.Equal(t, "Write Go services.", Strip(raw))
}

func Test_Strip_KeepsListStructure(t *testing.T) {

	raw := "<p>Requirements:</p><ul><li>Go</li><li>SQL</li></ul>"

	stripped := Strip(raw)
	assert.Contains(t, stripped, "Requirements:\n")
	assert.Contains(t, stripped, "Go\nSQL")
}

func Test_Strip_DropsScriptAndStyle(t *testing.T) {

	raw := "<style>body { color: red }</style><script>alert(1)</script><p>Visible</p>"
	assert.Equal(t, "Visible", Strip(raw))
}

func Test_Strip_CollapsesWhitespace(t *testing.T) {

	raw := "<p>spaced    out\t\ttext</p>\n\n\n\n<p>next</p>"

	stripped := Strip(raw)
	assert.Contains(t, stripped, "spaced out text")
	assert.NotContains(t, stripped, "\n\n\n")
}

func Test_Strip_PlainTextPassesThrough(t *testing.T) {

	assert.Equal(t, "just words", Strip("  just words  "))
	assert.Equal(t, "", Strip(""))
}
