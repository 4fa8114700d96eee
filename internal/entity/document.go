package entity

import "time"

// Document is one pending closure document as enumerated by a source.
// ReceivedAt and Label are the immutable inputs of the item identifier;
// Raw is the exact byte content an artifact is created from.
type Document struct {
	Name       string    // source file name (or synthesized for mail)
	Label      string    // mail subject or file base name
	Ext        string    // normalized extension of the artifact to create
	Text       string    // plain text the extractor runs over
	Raw        []byte    // original bytes, copied verbatim into the artifact
	ReceivedAt time.Time // immutable source timestamp
}
