package ejbca

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog(t *testing.T) {
	catalog, err := parseCatalog([]byte(testWSDL))
	require.NoError(t, err)

	assert.Len(t, catalog, 10)
	assert.Contains(t, catalog, "getEjbcaVersion")
	assert.Contains(t, catalog, "pkcs10Request")
}

func TestParseCatalogBindingFallback(t *testing.T) {
	doc := `<definitions xmlns="http://schemas.xmlsoap.org/wsdl/">
  <binding name="EjbcaWSPortBinding">
    <operation name="getEjbcaVersion"/>
    <operation name="findUser"/>
  </binding>
</definitions>`

	catalog, err := parseCatalog([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, catalog, 2)
	assert.Contains(t, catalog, "findUser")
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed document", `<definitions><portType`},
		{"no operations", `<definitions xmlns="http://schemas.xmlsoap.org/wsdl/"></definitions>`},
		{"html error page", `<html><body>502 Bad Gateway</body></html>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseCatalog([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestMinimalCatalog(t *testing.T) {
	catalog := minimalCatalog()

	require.Len(t, catalog, len(minimalOperations))
	for _, op := range []string{
		"getEjbcaVersion", "getAvailableCAs", "findUser", "editUser",
		"revokeCert", "getCertificate", "pkcs10Request", "revokeUser",
	} {
		assert.Contains(t, catalog, op)
	}
}

func TestCatalogNames(t *testing.T) {
	names := catalogNames(minimalCatalog())

	assert.True(t, sort.StringsAreSorted(names))
	assert.Len(t, names, len(minimalOperations))
}

func TestIsKnownOperation(t *testing.T) {
	assert.True(t, IsKnownOperation("getEjbcaVersion"))
	assert.True(t, IsKnownOperation("customLog"))
	assert.False(t, IsKnownOperation("dropAllTables"))
}
