package student

import (
	"encoding/base64"
	"strings"

	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// DefaultCredentialValidUntil is the fixed expiry printed on every credential.
const DefaultCredentialValidUntil = "2028-06-30"

// DigitalID is the presentation payload of a student's ID credential.
type DigitalID struct {
	Name       string  `json:"name"`
	RollNumber string  `json:"rollNumber"`
	Branch     string  `json:"branch"`
	ValidUntil string  `json:"validUntil"`
	IDHash     string  `json:"idHash"`
	PhotoURL   *string `json:"photoUrl"`
}

// EncodeIDHash derives the credential identifier from the account id and roll
// number. It is a reversible encoding, not a signature: anyone can forge one,
// so verification must go back to the live record.
func EncodeIDHash(accountID, rollNumber string) string {
	return base64.StdEncoding.EncodeToString([]byte(accountID + "-" + rollNumber))
}

// IDHashParts is one way of splitting a decoded credential identifier.
type IDHashParts struct {
	AccountID  string
	RollNumber string
}

// DecodeIDHash reverses EncodeIDHash. Both the account id and the roll number
// may contain '-', so every split point is returned as a candidate, leftmost
// first; the caller resolves them against the record store.
func DecodeIDHash(idHash string) ([]IDHashParts, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(idHash))
	if err != nil {
		return nil, shared.WrapError("student", "DecodeIDHash", shared.ErrInvalidArgument, "malformed credential identifier", err)
	}
	s := string(raw)
	var parts []IDHashParts
	for i := 0; i < len(s); i++ {
		if s[i] != '-' || i == 0 {
			continue
		}
		parts = append(parts, IDHashParts{AccountID: s[:i], RollNumber: s[i+1:]})
	}
	if len(parts) == 0 {
		return nil, shared.ErrInvalidIDHash
	}
	return parts, nil
}

// NewDigitalID builds the credential for r.
func NewDigitalID(r *Record, validUntil string) DigitalID {
	if validUntil == "" {
		validUntil = DefaultCredentialValidUntil
	}
	return DigitalID{
		Name:       r.Name,
		RollNumber: r.RollNumber,
		Branch:     r.Branch,
		ValidUntil: validUntil,
		IDHash:     EncodeIDHash(r.ID, r.RollNumber),
		PhotoURL:   photoOrNil(r.PhotoURL),
	}
}

// photoOrNil maps an empty photo URL to absent.
func photoOrNil(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return cloneString(p)
}
