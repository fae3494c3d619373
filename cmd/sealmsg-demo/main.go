// Command sealmsg-demo runs a two-party conversation against the in-memory
// reference ledger: both parties log in, Alice sends, Bob reads. It exists
// to exercise the SDK end to end without a deployed ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sealmsg/sealmsg"
	"github.com/sealmsg/sealmsg/simledger"
)

func main() {
	scope := flag.String("scope", "sealmsg-demo", "contract scope for confidential grants")
	cacheTTL := flag.Duration("cache-ttl", time.Hour, "conversation key cache TTL")
	text := flag.String("text", "hello from the demo", "message to send")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, "logger:", err)
			os.Exit(1)
		}
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *scope, *cacheTTL, *text); err != nil {
		fmt.Fprintln(os.Stderr, "demo:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, scope string, cacheTTL time.Duration, text string) error {
	chain := simledger.New(scope, simledger.WithLogger(logger.Named("ledger")))

	alice, err := newParty(chain, scope, cacheTTL, logger.Named("alice"))
	if err != nil {
		return err
	}
	defer alice.client.Close()
	bob, err := newParty(chain, scope, cacheTTL, logger.Named("bob"))
	if err != nil {
		return err
	}
	defer bob.client.Close()

	for _, p := range []*party{alice, bob} {
		res, err := p.client.Login(ctx, p.password)
		if err != nil {
			return fmt.Errorf("login %s: %w", p.wallet.AccountIdentity(), err)
		}
		fmt.Printf("logged in %s (new account: %v)\n", res.Account, res.IsNewAccount)
		if res.IsNewAccount {
			if _, err := p.client.Register(ctx); err != nil {
				return fmt.Errorf("register %s: %w", res.Account, err)
			}
		}
	}

	sent, err := alice.client.Send(ctx, bob.wallet.AccountIdentity(), text)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Printf("sent tx=%s conversation=%s\n", sent.TxID, sent.ConversationID)

	msgs, err := bob.client.Messages(ctx, sent.ConversationID, "")
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s -> %s: %s\n", m.SentAt.Format(time.RFC3339), m.From, m.To, m.Text)
	}
	return nil
}

type party struct {
	wallet   *simledger.Wallet
	client   *sealmsg.Client
	password string
}

func newParty(chain *simledger.Ledger, scope string, cacheTTL time.Duration, logger *zap.Logger) (*party, error) {
	wallet, err := simledger.NewWallet()
	if err != nil {
		return nil, err
	}
	client, err := sealmsg.New(sealmsg.Config{
		Ledger:        chain,
		Oracle:        chain,
		Wallet:        wallet,
		ContractScope: scope,
	},
		sealmsg.WithLogger(logger),
		sealmsg.WithKeyCacheTTL(cacheTTL),
	)
	if err != nil {
		return nil, err
	}
	return &party{wallet: wallet, client: client, password: "correct-horse-battery"}, nil
}
