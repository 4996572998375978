package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes name-based chunk UUIDs to this application.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("marketlens/document-chunk"))

// DocumentID derives a stable identifier from a document's file name and
// content. The same file indexed twice yields the same ID.
func DocumentID(name string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Checksum is the full content digest recorded in the manifest.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ChunkID is the store identifier of one page of a document.
func ChunkID(docID string, page int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(docID+"_page_"+strconv.Itoa(page))).String()
}
