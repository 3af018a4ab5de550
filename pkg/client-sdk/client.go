package payjoinsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"

	"github.com/payjoin-network/payjoin/common"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/exchange"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/explorer"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/finalizer"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/internal/utils"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/wallet"
	singlekeywallet "github.com/payjoin-network/payjoin/pkg/client-sdk/wallet/singlekey"
	walletstore "github.com/payjoin-network/payjoin/pkg/client-sdk/wallet/singlekey/store/inmemory"
)

const (
	// wallet
	SingleKeyWallet = wallet.SingleKeyWallet
	// store
	FileStore     = store.FileStore
	InMemoryStore = store.InMemoryStore
	// exchange
	DirectExchange  = exchange.DirectExchange
	RelayedExchange = exchange.RelayedExchange
)

var (
	ErrAlreadyInitialized = fmt.Errorf("client already initialized")
	ErrNotInitialized     = fmt.Errorf("client not initialized")
)

var (
	defaultExplorers = utils.SupportedType[string]{
		common.Bitcoin.Name:        "https://mempool.space/api",
		common.BitcoinTestNet.Name: "https://mempool.space/testnet/api",
		common.BitcoinRegTest.Name: "http://localhost:3000",
	}
)

type payjoinClient struct {
	*store.StoreData
	configStore store.ConfigStore
	wallet      wallet.WalletService
	explorer    explorer.Explorer
}

// New returns a client bound to an empty config store, ready to be
// initialized.
func New(configStore store.ConfigStore) (PayjoinClient, error) {
	if configStore == nil {
		return nil, fmt.Errorf("missing config store")
	}

	data, err := configStore.GetData(context.Background())
	if err != nil {
		return nil, err
	}
	if data != nil {
		return nil, ErrAlreadyInitialized
	}

	return &payjoinClient{configStore: configStore}, nil
}

// Load rebuilds a client from a previously initialized config store.
// The wallet comes back empty and must be restored with Restore before
// any operation that needs the signing key.
func Load(configStore store.ConfigStore) (PayjoinClient, error) {
	if configStore == nil {
		return nil, fmt.Errorf("missing config store")
	}

	data, err := configStore.GetData(context.Background())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotInitialized
	}

	explorerSvc, err := getExplorer(data.ExplorerURL, data.Network.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to setup explorer: %s", err)
	}

	walletSvc, err := getWallet(configStore, data)
	if err != nil {
		return nil, fmt.Errorf("failed to setup wallet: %s", err)
	}

	return &payjoinClient{
		StoreData:   data,
		configStore: configStore,
		wallet:      walletSvc,
		explorer:    explorerSvc,
	}, nil
}

func (c *payjoinClient) GetConfigData(
	_ context.Context,
) (*store.StoreData, error) {
	if c.StoreData == nil {
		return nil, ErrNotInitialized
	}
	return c.StoreData, nil
}

func (c *payjoinClient) Init(
	ctx context.Context, args InitArgs,
) (string, error) {
	if err := args.validate(); err != nil {
		return "", fmt.Errorf("invalid args: %s", err)
	}
	if c.StoreData != nil {
		return "", ErrAlreadyInitialized
	}

	network := common.NetworkFromString(args.Network)

	explorerSvc, err := getExplorer(args.ExplorerURL, network.Name)
	if err != nil {
		return "", fmt.Errorf("failed to setup explorer: %s", err)
	}

	storeData := store.StoreData{
		ExchangeType: args.ExchangeType,
		Endpoint:     args.Endpoint,
		RelayUrl:     args.RelayUrl,
		ExplorerURL:  explorerSvc.BaseUrl(),
		Network:      network,
		FeeRate:      args.FeeRate,
		Dust:         args.Dust,
		PollInterval: args.PollInterval,
		MaxAttempts:  args.MaxAttempts,
		WalletType:   args.WalletType,
		ClientType:   "rest",
	}
	if err := c.configStore.AddData(ctx, storeData); err != nil {
		return "", err
	}

	walletSvc, err := getWallet(c.configStore, &storeData)
	if err != nil {
		//nolint:all
		c.configStore.CleanData(ctx)
		return "", err
	}

	key, err := walletSvc.Create(ctx, args.Password, args.Key)
	if err != nil {
		//nolint:all
		c.configStore.CleanData(ctx)
		return "", err
	}

	c.StoreData = &storeData
	c.wallet = walletSvc
	c.explorer = explorerSvc

	return key, nil
}

// Restore rebuilds the in-memory wallet from a dumped key. Signing
// material does not survive restarts, so every loaded client restores
// before unlocking.
func (c *payjoinClient) Restore(
	ctx context.Context, password, key string,
) error {
	if c.StoreData == nil {
		return ErrNotInitialized
	}
	if len(key) <= 0 {
		return fmt.Errorf("missing wallet key")
	}

	walletSvc := c.wallet
	if walletSvc == nil {
		var err error
		walletSvc, err = getWallet(c.configStore, c.StoreData)
		if err != nil {
			return err
		}
	}

	if _, err := walletSvc.Create(ctx, password, key); err != nil {
		return err
	}

	c.wallet = walletSvc
	return nil
}

func (c *payjoinClient) Unlock(ctx context.Context, password string) error {
	if c.wallet == nil {
		return fmt.Errorf("wallet not initialized")
	}
	_, err := c.wallet.Unlock(ctx, password)
	return err
}

func (c *payjoinClient) Lock(ctx context.Context, password string) error {
	if c.wallet == nil {
		return fmt.Errorf("wallet not initialized")
	}
	return c.wallet.Lock(ctx, password)
}

func (c *payjoinClient) IsLocked(_ context.Context) bool {
	if c.wallet == nil {
		return true
	}
	return c.wallet.IsLocked()
}

func (c *payjoinClient) Dump(ctx context.Context) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}
	return c.wallet.Dump(ctx)
}

func (c *payjoinClient) Balance(ctx context.Context) (uint64, error) {
	if err := c.safeCheck(); err != nil {
		return 0, err
	}
	return c.wallet.GetBalance(ctx, c.explorer)
}

func (c *payjoinClient) Address(ctx context.Context) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}
	return c.wallet.GetAddress(ctx)
}

// Receive derives a fresh address and encodes it into a payment request
// the sender can act on. The request points at the configured exchange,
// the client's own endpoint in direct mode, the relay otherwise.
func (c *payjoinClient) Receive(
	ctx context.Context, amount btcutil.Amount,
) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}

	addr, err := c.wallet.NewReceiveAddress(ctx)
	if err != nil {
		return "", err
	}

	mode := common.ModeDirect
	endpoint := c.Endpoint
	if c.ExchangeType == RelayedExchange {
		mode = common.ModeRelay
		endpoint = c.RelayUrl
	}

	req := common.PaymentRequest{
		Address:  addr,
		Amount:   amount,
		Endpoint: endpoint,
		Mode:     mode,
	}
	return req.Encode()
}

// Send runs the sender side end to end: build a proposal from all
// spendable outputs, exchange it with the receiver, finalize the
// augmented response and broadcast it. Failures come back tagged with
// the stage they happened in.
func (c *payjoinClient) Send(
	ctx context.Context, args SendArgs,
) (string, error) {
	if err := c.safeCheck(); err != nil {
		return "", err
	}
	if err := args.validate(); err != nil {
		return "", common.TagStage(
			common.StageBuild,
			fmt.Errorf("%w: %s", common.ErrValidation, err),
			common.ErrValidation,
		)
	}

	spendables, err := c.wallet.GetSpendables(ctx, c.explorer)
	if err != nil {
		return "", common.TagStage(common.StageBuild, err, common.ErrNetwork)
	}

	changeAddr, err := c.wallet.GetAddress(ctx)
	if err != nil {
		return "", common.TagStage(common.StageBuild, err, common.ErrValidation)
	}

	builder := proposal.NewBuilder(
		c.FeeRate, c.Dust, nil, c.Network.ChainParams(),
	)
	sent, err := builder.Build(spendables, args.To, args.Amount, changeAddr)
	if err != nil {
		return "", common.TagStage(common.StageBuild, err, common.ErrValidation)
	}

	log.Debugf(
		"built proposal paying %d to %s with %d inputs",
		args.Amount, args.To, len(sent.InputOutPoints()),
	)

	strategy, err := c.getStrategy(args)
	if err != nil {
		return "", common.TagStage(common.StageExchange, err, common.ErrValidation)
	}

	received, err := strategy.Exchange(ctx, sent)
	if err != nil {
		return "", tagExchange(strategy.GetType(), err)
	}

	txid, rawTx, err := finalizer.Finalize(
		ctx, received, sent, c.wallet, c.explorer,
	)
	if err != nil {
		return "", common.TagStage(common.StageFinalize, err, common.ErrValidation)
	}

	if _, err := c.explorer.Broadcast(rawTx); err != nil {
		return "", common.TagStage(common.StageBroadcast, err, common.ErrBroadcast)
	}

	log.Debugf("broadcasted collaborative transaction %s", txid)
	return txid, nil
}

// RespondPending drains the relay queue: every session addressed to one
// of the wallet's addresses gets the sender proposal augmented with an
// owned input, signed and submitted back. One failing session does not
// stop the others.
func (c *payjoinClient) RespondPending(ctx context.Context) ([]string, error) {
	if err := c.safeCheck(); err != nil {
		return nil, err
	}
	if len(c.RelayUrl) <= 0 {
		return nil, fmt.Errorf("no relay configured")
	}

	transport, err := exchange.NewRestTransport(c.RelayUrl)
	if err != nil {
		return nil, err
	}

	addresses, err := c.wallet.GetAddresses(ctx)
	if err != nil {
		return nil, err
	}

	handled := make([]string, 0)
	for _, addr := range addresses {
		sessions, err := transport.GetPendingSessions(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", common.ErrNetwork, err)
		}

		for _, session := range sessions {
			if err := c.respondSession(ctx, transport, session.ID); err != nil {
				log.WithError(err).Warnf(
					"failed to respond to session %s", session.ID,
				)
				continue
			}
			handled = append(handled, session.ID)
		}
	}
	return handled, nil
}

func (c *payjoinClient) respondSession(
	ctx context.Context, transport exchange.ReceiverTransport, sessionID string,
) error {
	b64, err := transport.GetSessionProposal(ctx, sessionID)
	if err != nil {
		return err
	}

	original, err := proposal.Parse(b64)
	if err != nil {
		return err
	}

	spendables, err := c.wallet.GetSpendables(ctx, c.explorer)
	if err != nil {
		return err
	}
	contribution, err := pickContribution(spendables, original)
	if err != nil {
		return err
	}

	returnAddr, err := c.wallet.NewReceiveAddress(ctx)
	if err != nil {
		return err
	}
	pkScript, err := outputScript(returnAddr, c.Network.ChainParams())
	if err != nil {
		return err
	}

	augmented, err := proposal.Augment(
		original, contribution,
		wire.NewTxOut(int64(contribution.Value), pkScript),
	)
	if err != nil {
		return err
	}

	unsigned, err := augmented.Serialize()
	if err != nil {
		return err
	}
	signed, err := c.wallet.SignProposal(ctx, c.explorer, unsigned)
	if err != nil {
		return err
	}

	log.Debugf(
		"responding to session %s with contribution %s:%d",
		sessionID, contribution.Txid, contribution.VOut,
	)
	return transport.SubmitResponse(ctx, sessionID, signed)
}

func (c *payjoinClient) getStrategy(args SendArgs) (exchange.Strategy, error) {
	exchangeType := c.ExchangeType
	if len(args.ExchangeType) > 0 {
		exchangeType = args.ExchangeType
	}

	switch exchangeType {
	case DirectExchange:
		endpoint := c.Endpoint
		if len(args.Endpoint) > 0 {
			endpoint = args.Endpoint
		}
		return exchange.NewDirectStrategy(endpoint)
	case RelayedExchange:
		relayUrl := c.RelayUrl
		if len(args.Endpoint) > 0 {
			relayUrl = args.Endpoint
		}
		transport, err := exchange.NewRestTransport(relayUrl)
		if err != nil {
			return nil, err
		}
		return exchange.NewRelayedStrategy(
			transport, args.To, c.PollInterval, c.MaxAttempts, nil,
		)
	default:
		return nil, fmt.Errorf(
			"exchange type '%s' not supported, please select one of: %s",
			exchangeType, supportedExchanges,
		)
	}
}

func (c *payjoinClient) safeCheck() error {
	if c.StoreData == nil || c.wallet == nil {
		return fmt.Errorf("wallet not initialized")
	}
	return nil
}

// tagExchange maps an exchange failure to the stage it belongs to: a
// direct exchange is a single stage, a relayed one splits into submit
// and poll.
func tagExchange(strategyType string, err error) error {
	if strategyType == RelayedExchange {
		if errors.Is(err, common.ErrNetwork) {
			return common.TagStage(common.StageSubmit, err, common.ErrNetwork)
		}
		return common.TagStage(common.StagePoll, err, common.ErrTimeout)
	}
	return common.TagStage(common.StageExchange, err, common.ErrProtocol)
}

// pickContribution returns the first spendable output that is not
// already spent by the proposal being augmented.
func pickContribution(
	spendables []proposal.SpendableOutput, original *proposal.Proposal,
) (proposal.SpendableOutput, error) {
	taken := make(map[wire.OutPoint]struct{})
	for _, outpoint := range original.InputOutPoints() {
		taken[outpoint] = struct{}{}
	}

	for _, spendable := range spendables {
		outpoint, err := spendable.OutPoint()
		if err != nil {
			continue
		}
		if _, ok := taken[*outpoint]; ok {
			continue
		}
		return spendable, nil
	}
	return proposal.SpendableOutput{}, fmt.Errorf(
		"%w: no spendable output left to contribute", common.ErrInsufficientFunds,
	)
}

func outputScript(addr string, params *chaincfg.Params) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, err
	}
	if !decoded.IsForNet(params) {
		return nil, fmt.Errorf(
			"address %s is not valid for the configured network", addr,
		)
	}
	return txscript.PayToAddrScript(decoded)
}

func getExplorer(explorerURL, network string) (explorer.Explorer, error) {
	if explorerURL == "" {
		var ok bool
		if explorerURL, ok = defaultExplorers[network]; !ok {
			return nil, fmt.Errorf("invalid network")
		}
	}
	return explorer.NewExplorer(explorerURL, common.NetworkFromString(network)), nil
}

func getWallet(
	configStore store.ConfigStore, data *store.StoreData,
) (wallet.WalletService, error) {
	switch data.WalletType {
	case wallet.SingleKeyWallet:
		walletStore, err := walletstore.NewWalletStore()
		if err != nil {
			return nil, err
		}
		return singlekeywallet.NewBitcoinWallet(configStore, walletStore)
	default:
		return nil, fmt.Errorf(
			"unsupported wallet type '%s', please select one of: %s",
			data.WalletType, supportedWallets,
		)
	}
}
