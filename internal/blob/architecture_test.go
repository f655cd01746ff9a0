package blob

import (
	"testing"

	"provcore/testutil"
)

// The document store sits below the service layer; only pkg/domain and the
// storage SDKs are acceptable dependencies.
func TestBlobDoesNotImportServiceLayer(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ServiceImportForbidden,
		"internal/blob must not depend on internal/core")
}
