package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// FairnessProof lets a player recompute a round's crash point once the server
// seed has been revealed.
type FairnessProof struct {
	ServerSeed string `json:"server_seed"`
	Commitment string `json:"commitment"`
	ClientSeed string `json:"client_seed"`
	Nonce      int    `json:"nonce"`
}

// FairSource is a RandomSource that derives every draw from
// HMAC-SHA256(serverSeed, clientSeed:nonce) with a fresh server seed per draw.
type FairSource struct {
	clientSeed string
	nonce      int
	last       *FairnessProof
}

func NewFairSource(clientSeed string) *FairSource {
	if clientSeed == "" {
		clientSeed = GenerateSeed()
	}
	return &FairSource{clientSeed: clientSeed}
}

func (f *FairSource) Float64() float64 {
	f.nonce++
	serverSeed := GenerateSeed()
	f.last = &FairnessProof{
		ServerSeed: serverSeed,
		Commitment: HashCommitment(serverSeed),
		ClientSeed: f.clientSeed,
		Nonce:      f.nonce,
	}
	return DrawFloat(serverSeed, f.clientSeed, f.nonce)
}

func (f *FairSource) Proof() *FairnessProof {
	if f.last == nil {
		return nil
	}
	proof := *f.last
	return &proof
}

// DrawFloat converts the first 64 bits of the HMAC into a float in [0,1).
func DrawFloat(serverSeed, clientSeed string, nonce int) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(fmt.Sprintf("%s:%d", clientSeed, nonce)))
	sum := h.Sum(nil)

	return unitFloat(binary.BigEndian.Uint64(sum[:8]))
}

// unitFloat keeps the top 53 bits so the result is exact and stays below 1.
func unitFloat(x uint64) float64 {
	return float64(x>>11) / (1 << 53)
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// VerifyRound checks that the revealed seed matches its commitment and
// reproduces the claimed crash point.
func VerifyRound(proof FairnessProof, houseEdge, claimedCrashPoint float64) bool {
	if HashCommitment(proof.ServerSeed) != proof.Commitment {
		return false
	}
	r := DrawFloat(proof.ServerSeed, proof.ClientSeed, proof.Nonce)
	return CrashPointFromDraw(r, houseEdge) == claimedCrashPoint
}
