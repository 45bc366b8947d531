package solana

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
)

// Well-known Solana program IDs.
const (
	// SystemProgram is the native SOL transfer program
	SystemProgram = "11111111111111111111111111111111"

	// TokenProgram is the SPL Token program
	TokenProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

	// Token2022Program is the Token Extensions program (Token-2022)
	Token2022Program = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"

	// MemoProgramSPL is the SPL Memo program (most common)
	MemoProgramSPL = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

	// MemoProgramLegacy is the legacy memo program (v1)
	MemoProgramLegacy = "Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo"

	// ComputeBudgetProgram carries resource directives, not domain actions
	ComputeBudgetProgram = "ComputeBudget111111111111111111111111111111"
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// Token Program instruction types
const (
	TokenProgramTransferInstruction        = uint8(3)
	TokenProgramTransferCheckedInstruction = uint8(12)
)

// Compute Budget instruction types
const (
	ComputeBudgetSetUnitLimitInstruction = uint8(2)
)

// programsByTag maps the jsonParsed "program" string tag to a program id.
// The system program is deliberately absent: it has its own resolution step.
var programsByTag = map[string]string{
	"spl-token":                    TokenProgram,
	"spl-token-2022":               Token2022Program,
	"spl-memo":                     MemoProgramSPL,
	"spl-associated-token-account": "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL",
	"vote":                         "Vote111111111111111111111111111111111111111",
	"stake":                        "Stake11111111111111111111111111111111111111",
	"compute-budget":               ComputeBudgetProgram,
	"address-lookup-table":         "AddressLookupTab1e1111111111111111111111111",
	"bpf-loader":                   "BPFLoader2111111111111111111111111111111111",
	"bpf-upgradeable-loader":       "BPFLoaderUpgradeab1e11111111111111111111111",
}

// instrView is the shape-independent view of one instruction handed to the
// program-id resolver chain.
type instrView struct {
	programID    string   // embedded structured program key, if any
	programTag   string   // provider's string program tag, if any
	parsedSystem bool     // provider decoded it and tagged it as the system program
	programIndex int      // index into accountKeys, -1 if absent
	accountKeys  []string // the transaction's account-key list
}

// programResolver tries one strategy of resolving an instruction's program id.
type programResolver func(v instrView) (string, bool)

// programResolvers is the priority-ordered fallback chain; the first strategy
// that matches wins. An instruction no strategy can resolve is dropped.
var programResolvers = []programResolver{
	// 1. embedded structured program key
	func(v instrView) (string, bool) {
		return v.programID, v.programID != ""
	},
	// 2. string-typed program tag, via the known-program table
	func(v instrView) (string, bool) {
		id, ok := programsByTag[v.programTag]
		return id, ok
	},
	// 3. provider marked it as decoded system program
	func(v instrView) (string, bool) {
		return SystemProgram, v.parsedSystem
	},
	// 4. embedded index into the account-key list
	func(v instrView) (string, bool) {
		if v.programIndex >= 0 && v.programIndex < len(v.accountKeys) {
			return v.accountKeys[v.programIndex], true
		}
		return "", false
	},
}

func resolveProgramID(v instrView) (string, bool) {
	for _, resolve := range programResolvers {
		if id, ok := resolve(v); ok {
			return id, true
		}
	}
	return "", false
}

// Normalize converts a raw provider response into the canonical transaction
// model. A nil result with a nil error means the transaction carries no
// instructions, which is a valid terminal outcome, not an error.
//
// Normalization is deterministic: the same RawTransaction always produces a
// byte-identical CanonicalTransaction.
func Normalize(raw *RawTransaction) (*CanonicalTransaction, error) {
	if raw == nil {
		return nil, nil
	}
	if raw.Parsed != nil {
		canon, err := normalizeParsed(raw.Signature, raw.Parsed)
		if canon != nil || err != nil {
			return canon, err
		}
	}
	if raw.Raw != nil {
		return normalizeRaw(raw.Signature, raw.Raw)
	}
	return nil, nil
}

// normalizeParsed handles the jsonParsed response shape.
func normalizeParsed(signature string, res *ParsedTxResult) (*CanonicalTransaction, error) {
	if res.Transaction == nil || res.Transaction.Message == nil {
		return nil, nil
	}
	msg := res.Transaction.Message

	keys := make([]string, len(msg.AccountKeys))
	keyRoles := make(map[string]ParsedAccountKey, len(msg.AccountKeys))
	for i, k := range msg.AccountKeys {
		keys[i] = k.Pubkey
		keyRoles[k.Pubkey] = k
	}

	var instructions []Instruction
	var compute *ComputeDirective

	for _, ix := range msg.Instructions {
		info, memoText := decodeParsedPayload(ix.Parsed)

		v := instrView{
			programID:    ix.ProgramID,
			programTag:   ix.Program,
			parsedSystem: ix.Program == "system" && info != nil,
			programIndex: -1,
			accountKeys:  keys,
		}
		programID, ok := resolveProgramID(v)
		if !ok {
			continue
		}

		data := decodeInstructionData(ix.Data)

		if programID == ComputeBudgetProgram {
			if units, ok := computeUnitLimit(info, data); ok {
				if compute == nil {
					compute = &ComputeDirective{Units: units}
				}
				continue
			}
		}

		instructions = append(instructions, Instruction{
			ProgramID:   programID,
			Description: describeParsed(programID, info, memoText),
			Accounts:    parsedAccounts(ix, info, keyRoles),
			DataBase64:  base64.StdEncoding.EncodeToString(data),
		})
	}

	if len(instructions) == 0 && compute == nil {
		return nil, nil
	}

	return &CanonicalTransaction{
		Signature:      signature,
		Instructions:   instructions,
		UniqueAccounts: uniqueAccounts(instructions),
		Compute:        compute,
	}, nil
}

// normalizeRaw handles the base64 response shape, legacy or versioned.
// Account roles are not explicit here; they are derived from the message
// header's positional counts.
func normalizeRaw(signature string, res *rpc.GetTransactionResult) (*CanonicalTransaction, error) {
	if res.Transaction == nil {
		return nil, nil
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	msg := tx.Message
	keys := make([]string, len(msg.AccountKeys))
	for i, k := range msg.AccountKeys {
		keys[i] = k.String()
	}

	var instructions []Instruction
	var compute *ComputeDirective

	for _, ix := range msg.Instructions {
		v := instrView{
			programIndex: int(ix.ProgramIDIndex),
			accountKeys:  keys,
		}
		programID, ok := resolveProgramID(v)
		if !ok {
			continue
		}

		if programID == ComputeBudgetProgram {
			if units, ok := computeUnitLimitFromData(ix.Data); ok {
				if compute == nil {
					compute = &ComputeDirective{Units: units}
				}
				continue
			}
		}

		accounts := make([]AccountRef, 0, len(ix.Accounts))
		for _, ai := range ix.Accounts {
			idx := int(ai)
			if idx >= len(keys) {
				// Versioned transactions may reference looked-up addresses
				// beyond the static key list; those carry no role data here.
				continue
			}
			signer, writable := headerRole(idx, len(keys), msg.Header)
			accounts = append(accounts, AccountRef{
				Address:    keys[idx],
				IsSigner:   signer,
				IsWritable: writable,
			})
		}

		instructions = append(instructions, Instruction{
			ProgramID:   programID,
			Description: describeRaw(programID, ix.Data),
			Accounts:    accounts,
			DataBase64:  base64.StdEncoding.EncodeToString(ix.Data),
		})
	}

	if len(instructions) == 0 && compute == nil {
		return nil, nil
	}

	return &CanonicalTransaction{
		Signature:      signature,
		Instructions:   instructions,
		UniqueAccounts: uniqueAccounts(instructions),
		Compute:        compute,
	}, nil
}

// headerRole derives one account's roles from the message header. An account
// at position i signs iff i < numRequiredSignatures; it is writable iff it
// falls outside both trailing read-only ranges (the last
// numReadonlySignedAccounts of the signer block and the last
// numReadonlyUnsignedAccounts of the whole list).
func headerRole(i, total int, h solana.MessageHeader) (signer, writable bool) {
	numRequired := int(h.NumRequiredSignatures)
	roSigned := int(h.NumReadonlySignedAccounts)
	roUnsigned := int(h.NumReadonlyUnsignedAccounts)

	signer = i < numRequired

	if signer {
		writable = i < numRequired-roSigned
	} else {
		writable = i < total-roUnsigned
	}
	return signer, writable
}

// decodeParsedPayload splits the polymorphic "parsed" field: an object with
// type/info for decoded instructions, a bare string for memos.
func decodeParsedPayload(payload json.RawMessage) (*InstructionInfo, string) {
	if len(payload) == 0 {
		return nil, ""
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return nil, s
		}
		return nil, ""
	}

	// Decode with UseNumber so numeric info fields keep their exact decimal
	// form in descriptions.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var info InstructionInfo
	if err := dec.Decode(&info); err != nil || info.Type == "" {
		return nil, ""
	}
	return &info, ""
}

// decodeInstructionData decodes the provider's base58 instruction data.
// Undecodable data is treated as absent.
func decodeInstructionData(data string) []byte {
	if data == "" {
		return nil
	}
	decoded, err := base58.Decode(data)
	if err != nil {
		return nil
	}
	return decoded
}

// parsedAccounts resolves account roles for a jsonParsed instruction.
// Instructions the provider could not decode reference the account-key list
// positionally, so the provider's explicit signer/writable flags apply.
// Decoded instructions instead name accounts by semantic field, where roles
// are a best-effort heuristic keyed on the field name.
func parsedAccounts(ix ParsedInstruction, info *InstructionInfo, keyRoles map[string]ParsedAccountKey) []AccountRef {
	if len(ix.Accounts) > 0 {
		out := make([]AccountRef, 0, len(ix.Accounts))
		for _, addr := range ix.Accounts {
			k, ok := keyRoles[addr]
			if !ok {
				out = append(out, AccountRef{Address: addr})
				continue
			}
			out = append(out, AccountRef{
				Address:    addr,
				IsSigner:   k.Signer,
				IsWritable: k.Writable,
			})
		}
		return out
	}

	if info == nil {
		return nil
	}

	// Field order in a JSON object is not stable, so iterate sorted names to
	// keep normalization deterministic.
	names := make([]string, 0, len(info.Info))
	for name := range info.Info {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []AccountRef
	for _, name := range names {
		addr, ok := info.Info[name].(string)
		if !ok || !looksLikeAddress(addr) {
			continue
		}
		signer, writable := heuristicRole(name)
		if k, known := keyRoles[addr]; known {
			// Prefer the provider's explicit flags when the address appears
			// in the account-key list.
			signer, writable = k.Signer, k.Writable
		}
		out = append(out, AccountRef{
			Address:    addr,
			IsSigner:   signer,
			IsWritable: writable,
		})
	}
	return out
}

// heuristicRole guesses an account's roles from its semantic field name in
// the decoded info. Best-effort: the provider's decoded shape varies per
// program and unrecognized instruction types may be mis-tagged.
func heuristicRole(field string) (signer, writable bool) {
	switch strings.ToLower(field) {
	case "source", "authority", "owner", "payer", "from", "funder":
		return true, true
	case "destination", "newaccount", "account", "to", "delegate":
		return false, true
	default:
		return false, false
	}
}

// looksLikeAddress reports whether a string value is plausibly a base58
// pubkey. Keeps amounts and labels out of the account list.
func looksLikeAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// computeUnitLimit extracts the requested unit limit from a compute-budget
// instruction in either shape.
func computeUnitLimit(info *InstructionInfo, data []byte) (uint32, bool) {
	if info != nil {
		if info.Type != "setComputeUnitLimit" {
			return 0, false
		}
		if n, ok := info.Info["units"].(json.Number); ok {
			if u, err := n.Int64(); err == nil && u >= 0 {
				return uint32(u), true
			}
		}
		return 0, false
	}
	return computeUnitLimitFromData(data)
}

// computeUnitLimitFromData decodes SetComputeUnitLimit from raw instruction
// bytes: a one-byte discriminator followed by a u32 limit.
func computeUnitLimitFromData(data []byte) (uint32, bool) {
	if len(data) < 5 || data[0] != ComputeBudgetSetUnitLimitInstruction {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[1:5]), true
}

// describeParsed builds the short human-readable label for a decoded
// instruction: the decoded type name plus whichever salient numeric fields
// are present.
func describeParsed(programID string, info *InstructionInfo, memoText string) string {
	if memoText != "" {
		return "memo: " + truncate(memoText, 48)
	}
	if info == nil {
		return "program " + shortID(programID)
	}

	parts := []string{info.Type}
	if n, ok := info.Info["lamports"].(json.Number); ok {
		parts = append(parts, fmt.Sprintf("%s lamports", n.String()))
	}
	if amt, ok := info.Info["amount"]; ok {
		parts = append(parts, fmt.Sprintf("amount %v", amt))
	} else if ta, ok := info.Info["tokenAmount"].(map[string]interface{}); ok {
		if amt, ok := ta["amount"]; ok {
			parts = append(parts, fmt.Sprintf("amount %v", amt))
		}
	}
	if mint, ok := info.Info["mint"].(string); ok {
		parts = append(parts, "mint "+shortID(mint))
	}
	return strings.Join(parts, " ")
}

// describeRaw builds the label for a raw-encoded instruction by decoding the
// handful of well-known layouts; everything else gets a generic label naming
// the program.
func describeRaw(programID string, data []byte) string {
	switch programID {
	case SystemProgram:
		if len(data) >= 12 && binary.LittleEndian.Uint32(data[0:4]) == SystemProgramTransferInstruction {
			return fmt.Sprintf("transfer %d lamports", binary.LittleEndian.Uint64(data[4:12]))
		}
	case TokenProgram, Token2022Program:
		if len(data) >= 9 {
			switch data[0] {
			case TokenProgramTransferInstruction:
				return fmt.Sprintf("transfer amount %d", binary.LittleEndian.Uint64(data[1:9]))
			case TokenProgramTransferCheckedInstruction:
				return fmt.Sprintf("transferChecked amount %d", binary.LittleEndian.Uint64(data[1:9]))
			}
		}
	case MemoProgramSPL, MemoProgramLegacy:
		return "memo: " + truncate(string(data), 48)
	}
	return "program " + shortID(programID)
}

// uniqueAccounts collects every address appearing as a program id or account
// reference across the instruction list, sorted.
func uniqueAccounts(instructions []Instruction) []string {
	seen := make(map[string]struct{})
	for _, ix := range instructions {
		seen[ix.ProgramID] = struct{}{}
		for _, acc := range ix.Accounts {
			seen[acc.Address] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func shortID(id string) string {
	return truncate(id, 8)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
