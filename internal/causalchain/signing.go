package causalchain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signer produces and verifies Action signatures. HMAC-SHA256 over a stable
// encoding of the action fields is sufficient for the ledger's append-only
// integrity guarantee; no pack example wires an asymmetric-signing library,
// so this stays on crypto/hmac (see DESIGN.md).
type Signer struct {
	key []byte
}

func NewSigner(key []byte) *Signer { return &Signer{key: key} }

func (s *Signer) Sign(a *Action) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(signaturePayload(a)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(a *Action) bool {
	expected := s.Sign(&Action{
		ID: a.ID, ParentActionID: a.ParentActionID, IntentID: a.IntentID,
		PlanID: a.PlanID, Type: a.Type, CapabilityID: a.CapabilityID,
		FunctionName: a.FunctionName, Timestamp: a.Timestamp,
	})
	return hmac.Equal([]byte(expected), []byte(a.Signature))
}

func signaturePayload(a *Action) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%d",
		a.ID, a.ParentActionID, a.IntentID, a.PlanID, a.Type, a.CapabilityID, a.FunctionName, a.Timestamp.UnixNano())
}
