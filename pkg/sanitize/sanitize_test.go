package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	assert.Equal(t, "hola mundo", Text("  <b>hola</b> <script>alert(1)</script>mundo ", 0))
	assert.Equal(t, "Gómez & Cía", Text("Gómez &amp; Cía", 0))
	assert.Equal(t, "abc", Text("abcdef", 3))
	assert.Equal(t, "", Text("<img src=x onerror=alert(1)>", 0))
}
