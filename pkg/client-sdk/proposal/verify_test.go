package proposal_test

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/payjoin-network/payjoin/common"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
)

func TestVerifyContains(t *testing.T) {
	receiverAddr, _ := newTestAddress(t)
	changeAddr, _ := newTestAddress(t)
	senderAddr, senderScript := newTestAddress(t)
	counterpartyAddr, counterpartyScript := newTestAddress(t)

	spendables := []proposal.SpendableOutput{
		newSpendable(t, 200_000, senderAddr, senderScript),
		newSpendable(t, 200_000, senderAddr, senderScript),
	}
	sent, err := proposal.NewBuilder(0, 0, nil, testParams).Build(
		spendables, receiverAddr.String(), 100_000, changeAddr.String(),
	)
	require.NoError(t, err)
	require.Len(t, sent.Outputs(), 2)

	t.Run("identical proposal", func(t *testing.T) {
		received, err := sent.Copy()
		require.NoError(t, err)
		require.NoError(t, proposal.VerifyContains(sent, received))
	})

	t.Run("augmented proposal", func(t *testing.T) {
		contribution := newSpendable(t, 50_000, counterpartyAddr, counterpartyScript)
		received, err := proposal.Augment(sent, contribution, &wire.TxOut{
			Value: 50_000, PkScript: counterpartyScript,
		})
		require.NoError(t, err)
		require.NoError(t, proposal.VerifyContains(sent, received))
	})

	t.Run("reordered inputs and outputs", func(t *testing.T) {
		received, err := sent.Copy()
		require.NoError(t, err)

		unsigned := received.UnsignedTx()
		unsigned.TxIn[0], unsigned.TxIn[1] = unsigned.TxIn[1], unsigned.TxIn[0]
		unsigned.TxOut[0], unsigned.TxOut[1] = unsigned.TxOut[1], unsigned.TxOut[0]

		require.NoError(t, proposal.VerifyContains(sent, received))
	})

	t.Run("dropped input", func(t *testing.T) {
		received, err := sent.Copy()
		require.NoError(t, err)

		received.UnsignedTx().TxIn = received.UnsignedTx().TxIn[:1]
		received.Packet().Inputs = received.Packet().Inputs[:1]

		err = proposal.VerifyContains(sent, received)
		require.ErrorIs(t, err, common.ErrValidation)
		require.ErrorContains(t, err, "input")
	})

	t.Run("dropped output", func(t *testing.T) {
		received, err := sent.Copy()
		require.NoError(t, err)

		received.UnsignedTx().TxOut = received.UnsignedTx().TxOut[:1]
		received.Packet().Outputs = received.Packet().Outputs[:1]

		err = proposal.VerifyContains(sent, received)
		require.ErrorIs(t, err, common.ErrValidation)
		require.ErrorContains(t, err, "output")
	})

	t.Run("tampered output value", func(t *testing.T) {
		received, err := sent.Copy()
		require.NoError(t, err)

		received.UnsignedTx().TxOut[0].Value--

		require.ErrorIs(t, proposal.VerifyContains(sent, received), common.ErrValidation)
	})

	t.Run("substituted input", func(t *testing.T) {
		received, err := sent.Copy()
		require.NoError(t, err)

		received.UnsignedTx().TxIn[0].PreviousOutPoint.Index = 9

		require.ErrorIs(t, proposal.VerifyContains(sent, received), common.ErrValidation)
	})
}

func TestAugment(t *testing.T) {
	receiverAddr, _ := newTestAddress(t)
	changeAddr, _ := newTestAddress(t)
	senderAddr, senderScript := newTestAddress(t)
	counterpartyAddr, counterpartyScript := newTestAddress(t)

	spendables := []proposal.SpendableOutput{
		newSpendable(t, 300_000, senderAddr, senderScript),
	}
	original, err := proposal.NewBuilder(0, 0, nil, testParams).Build(
		spendables, receiverAddr.String(), 100_000, changeAddr.String(),
	)
	require.NoError(t, err)

	contribution := newSpendable(t, 80_000, counterpartyAddr, counterpartyScript)

	t.Run("adds one input and one output", func(t *testing.T) {
		augmented, err := proposal.Augment(original, contribution, &wire.TxOut{
			Value: 80_000, PkScript: counterpartyScript,
		})
		require.NoError(t, err)

		require.Len(t, augmented.InputOutPoints(), 2)
		require.Len(t, augmented.Outputs(), 3)
		require.Len(t, augmented.Packet().Inputs, 2)
		require.Len(t, augmented.Packet().Outputs, 3)

		contributed, err := contribution.OutPoint()
		require.NoError(t, err)
		require.Equal(t, *contributed, augmented.InputOutPoints()[1])
		require.NotNil(t, augmented.Packet().Inputs[1].WitnessUtxo)

		inputSum, err := augmented.InputSum()
		require.NoError(t, err)
		require.EqualValues(t, 380_000, inputSum)

		// the original is untouched
		require.Len(t, original.InputOutPoints(), 1)
		require.Len(t, original.Outputs(), 2)
	})

	t.Run("rejects missing output", func(t *testing.T) {
		_, err := proposal.Augment(original, contribution, nil)
		require.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("rejects dust output", func(t *testing.T) {
		_, err := proposal.Augment(original, contribution, &wire.TxOut{
			Value: 100, PkScript: counterpartyScript,
		})
		require.ErrorIs(t, err, common.ErrValidation)
		require.ErrorContains(t, err, "dust")
	})

	t.Run("rejects invalid contribution", func(t *testing.T) {
		bad := contribution
		bad.Txid = "zz"
		_, err := proposal.Augment(original, bad, &wire.TxOut{
			Value: 80_000, PkScript: counterpartyScript,
		})
		require.ErrorIs(t, err, common.ErrValidation)
	})
}
