package segmenters

import "github.com/google/uuid"

// documentNamespace scopes document IDs generated by DocumentID.
var documentNamespace = uuid.MustParse("6f1c2a8e-3b4d-5e6f-8a9b-0c1d2e3f4a5b")

// DocumentID derives a stable identifier from a document's name and content.
// The same upload always receives the same ID regardless of batch position.
func DocumentID(name string, content []byte) string {
	data := make([]byte, 0, len(name)+1+len(content))
	data = append(data, name...)
	data = append(data, 0)
	data = append(data, content...)
	return uuid.NewSHA1(documentNamespace, data).String()
}
