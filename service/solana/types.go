package solana

import (
	"encoding/json"

	"github.com/gagliardetto/solana-go/rpc"
)

// RawTransaction is the provider-returned payload for one signature, in
// whichever shape the provider could produce: the jsonParsed form when the
// provider could decode the transaction, or the base64 form otherwise.
// It is persisted verbatim in the cache and inspected only by the normalizer.
type RawTransaction struct {
	Signature string                    `json:"signature"`
	Parsed    *ParsedTxResult           `json:"parsed,omitempty"`
	Raw       *rpc.GetTransactionResult `json:"raw,omitempty"`
}

// ParsedTxResult mirrors the getTransaction response under jsonParsed
// encoding. We decode it into our own structs rather than solana-go's
// parsed-mode types so the normalizer sees the provider's shape directly,
// including the parts that vary per program.
type ParsedTxResult struct {
	Slot        uint64          `json:"slot"`
	BlockTime   *int64          `json:"blockTime"`
	Transaction *ParsedTx       `json:"transaction"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	Version     json.RawMessage `json:"version,omitempty"`
}

// ParsedTx is the transaction body of a jsonParsed response.
type ParsedTx struct {
	Signatures []string       `json:"signatures"`
	Message    *ParsedMessage `json:"message"`
}

// ParsedMessage is the message body of a jsonParsed response.
type ParsedMessage struct {
	AccountKeys     []ParsedAccountKey  `json:"accountKeys"`
	Instructions    []ParsedInstruction `json:"instructions"`
	RecentBlockhash string              `json:"recentBlockhash,omitempty"`
}

// ParsedAccountKey is one entry of the jsonParsed account-key list, with the
// provider's explicit role flags.
type ParsedAccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
	Source   string `json:"source,omitempty"`
}

// ParsedInstruction is one instruction of a jsonParsed response. Which fields
// are populated depends on whether the provider could decode the instruction:
// decoded instructions carry Program/Parsed, raw ones carry Accounts/Data.
// Parsed is kept as raw JSON because its shape varies per program (an object
// with type/info for most, a bare string for memos).
type ParsedInstruction struct {
	Program     string          `json:"program,omitempty"`
	ProgramID   string          `json:"programId,omitempty"`
	Accounts    []string        `json:"accounts,omitempty"`
	Data        string          `json:"data,omitempty"`
	Parsed      json.RawMessage `json:"parsed,omitempty"`
	StackHeight *int            `json:"stackHeight,omitempty"`
}

// InstructionInfo is the decoded form of ParsedInstruction.Parsed for
// instructions the provider recognized.
type InstructionInfo struct {
	Type string                 `json:"type"`
	Info map[string]interface{} `json:"info"`
}

// AccountRef is one participant of a canonical instruction. The role flags
// are derived by the normalizer, not necessarily explicit in the source data.
type AccountRef struct {
	Address    string `json:"address"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// Instruction is the canonical, provider-agnostic record of one transaction
// action. Order within a transaction is execution order.
type Instruction struct {
	ProgramID   string       `json:"programId"`
	Description string       `json:"description"`
	Accounts    []AccountRef `json:"accounts"`
	DataBase64  string       `json:"dataBase64"`
}

// ComputeDirective is the compute-unit limit requested by a transaction,
// extracted from the instruction stream because it is a resource directive,
// not a domain action.
type ComputeDirective struct {
	Units uint32 `json:"units"`
}

// CanonicalTransaction is the normalizer's output: one transaction reduced to
// its canonical instruction list. UniqueAccounts is exactly the set of
// addresses appearing as a program id or account reference across
// Instructions, sorted so normalization is byte-for-byte reproducible.
type CanonicalTransaction struct {
	Signature      string            `json:"signature"`
	Instructions   []Instruction     `json:"instructions"`
	UniqueAccounts []string          `json:"uniqueAccounts"`
	Compute        *ComputeDirective `json:"compute,omitempty"`
}

// MarshalRaw serializes a RawTransaction for cache persistence.
func MarshalRaw(raw *RawTransaction) ([]byte, error) {
	return json.Marshal(raw)
}

// UnmarshalRaw deserializes a cached RawTransaction.
func UnmarshalRaw(data []byte) (*RawTransaction, error) {
	var raw RawTransaction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}
