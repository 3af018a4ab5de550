package proposal

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// SpendableOutput is an unspent output reported by the chain data
// provider. RawTx carries the serialized containing transaction so the
// previous output can be bound to a proposal without further lookups.
type SpendableOutput struct {
	Txid    string
	VOut    uint32
	Value   btcutil.Amount
	Address string
	RawTx   []byte
}

func (o SpendableOutput) OutPoint() (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(o.Txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %s: %s", o.Txid, err)
	}
	return wire.NewOutPoint(hash, o.VOut), nil
}

// PrevOut extracts the previous output this spendable refers to from
// its containing transaction.
func (o SpendableOutput) PrevOut() (*wire.TxOut, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(o.RawTx)); err != nil {
		return nil, fmt.Errorf("invalid raw transaction for %s: %s", o.Txid, err)
	}
	if int(o.VOut) >= len(tx.TxOut) {
		return nil, fmt.Errorf("output index %d out of bounds for %s", o.VOut, o.Txid)
	}
	return tx.TxOut[o.VOut], nil
}

// Proposal is the partially signed transaction the two parties exchange
// before finalization. Its wire form is the BIP-174 base64 encoding.
type Proposal struct {
	packet *psbt.Packet
}

func New(packet *psbt.Packet) *Proposal {
	return &Proposal{packet}
}

func Parse(b64 string) (*Proposal, error) {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(b64), true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proposal: %s", err)
	}
	return &Proposal{packet}, nil
}

func (p *Proposal) Serialize() (string, error) {
	return p.packet.B64Encode()
}

func (p *Proposal) Packet() *psbt.Packet {
	return p.packet
}

func (p *Proposal) UnsignedTx() *wire.MsgTx {
	return p.packet.UnsignedTx
}

// InputOutPoints returns the bound input outpoints in transaction order.
func (p *Proposal) InputOutPoints() []wire.OutPoint {
	outpoints := make([]wire.OutPoint, 0, len(p.packet.UnsignedTx.TxIn))
	for _, in := range p.packet.UnsignedTx.TxIn {
		outpoints = append(outpoints, in.PreviousOutPoint)
	}
	return outpoints
}

// Outputs returns the transaction outputs in transaction order.
func (p *Proposal) Outputs() []*wire.TxOut {
	return p.packet.UnsignedTx.TxOut
}

// InputSum totals the bound input values. It requires every input to
// carry its witness utxo.
func (p *Proposal) InputSum() (btcutil.Amount, error) {
	total := btcutil.Amount(0)
	for i, in := range p.packet.Inputs {
		if in.WitnessUtxo == nil {
			return 0, fmt.Errorf("missing witness utxo for input %d", i)
		}
		total += btcutil.Amount(in.WitnessUtxo.Value)
	}
	return total, nil
}

func (p *Proposal) OutputSum() btcutil.Amount {
	total := btcutil.Amount(0)
	for _, out := range p.packet.UnsignedTx.TxOut {
		total += btcutil.Amount(out.Value)
	}
	return total
}

// Copy returns an independent proposal backed by its own packet.
func (p *Proposal) Copy() (*Proposal, error) {
	encoded, err := p.Serialize()
	if err != nil {
		return nil, err
	}
	return Parse(encoded)
}
