package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/aegisvault/aegisvault/internal/authz"
	"github.com/aegisvault/aegisvault/internal/config"
	"github.com/aegisvault/aegisvault/internal/keystore"
	"github.com/aegisvault/aegisvault/internal/nullifier"
	"github.com/aegisvault/aegisvault/internal/registry"
	"github.com/aegisvault/aegisvault/pkg/emergency"
	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// passphraseEnv is consulted when -passphrase is not given.
const passphraseEnv = "AEGIS_PASSPHRASE"

// ErrNoPassphrase is returned when neither the -passphrase flag nor the
// environment provides a keystore passphrase.
var ErrNoPassphrase = errors.New("a keystore passphrase is required (use -passphrase or " + passphraseEnv + ")")

// CLI provides commands for managing guardian keys and proof bundles.
type CLI struct {
	config config.CLIConfig
	output io.Writer
}

// NewCLI creates a new CLI instance with the given configuration.
func NewCLI(cfg config.CLIConfig) *CLI {
	return &CLI{config: cfg, output: os.Stdout}
}

// NewCLIWithDefaults creates a new CLI instance using default paths.
func NewCLIWithDefaults() *CLI {
	return NewCLI(config.DefaultCLIConfig())
}

// Keygen creates a fresh keystore and prints the recovery phrase.
func (c *CLI) Keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(c.output)
	pass := fs.String("passphrase", "", "keystore encryption passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}

	passphrase, err := resolvePassphrase(*pass)
	if err != nil {
		return err
	}

	if _, err := os.Stat(c.config.Keystore.Path); err == nil {
		return fmt.Errorf("keystore already exists at %s", c.config.Keystore.Path)
	}

	ks, mnemonic, err := keystore.New()
	if err != nil {
		return fmt.Errorf("failed to generate keystore: %w", err)
	}
	if err := keystore.Save(ks, c.config.Keystore.Path, passphrase); err != nil {
		return fmt.Errorf("failed to save keystore: %w", err)
	}

	addr, err := ks.Address()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.output, "Keystore written to %s\n", c.config.Keystore.Path)
	fmt.Fprintf(c.output, "Address: %s\n", encodeField(addr))
	fmt.Fprintln(c.output)
	fmt.Fprintln(c.output, "Recovery phrase (write it down, it is shown only once):")
	fmt.Fprintf(c.output, "  %s\n", mnemonic)
	return nil
}

// Recover rebuilds the keystore from a BIP-39 recovery phrase.
func (c *CLI) Recover(args []string) error {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	fs.SetOutput(c.output)
	pass := fs.String("passphrase", "", "keystore encryption passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mnemonic := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if mnemonic == "" {
		return errors.New("usage: aegis-cli recover [-passphrase ...] <24 mnemonic words>")
	}

	passphrase, err := resolvePassphrase(*pass)
	if err != nil {
		return err
	}

	if _, err := os.Stat(c.config.Keystore.Path); err == nil {
		return fmt.Errorf("keystore already exists at %s", c.config.Keystore.Path)
	}

	ks, err := keystore.FromMnemonic(mnemonic)
	if err != nil {
		return err
	}
	if err := keystore.Save(ks, c.config.Keystore.Path, passphrase); err != nil {
		return fmt.Errorf("failed to save keystore: %w", err)
	}

	addr, err := ks.Address()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.output, "Keystore recovered to %s\n", c.config.Keystore.Path)
	fmt.Fprintf(c.output, "Address: %s\n", encodeField(addr))
	return nil
}

// Declare proves an emergency declaration and writes the bundle to the outbox.
func (c *CLI) Declare(args []string) error {
	fs := flag.NewFlagSet("declare", flag.ContinueOnError)
	fs.SetOutput(c.output)
	emergencyType := fs.Int("type", 0, "emergency type 1-5")
	severity := fs.Int("severity", 0, "severity 1-10")
	timestamp := fs.Int64("timestamp", 0, "declaration unix time (default now)")
	notBefore := fs.Int64("not-before", 0, "window start (default timestamp-60)")
	notAfter := fs.Int64("not-after", 0, "window end (default timestamp+300)")
	pass := fs.String("passphrase", "", "keystore encryption passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *timestamp == 0 {
		*timestamp = time.Now().Unix()
	}
	if *notBefore == 0 {
		*notBefore = *timestamp - 60
	}
	if *notAfter == 0 {
		*notAfter = *timestamp + 300
	}

	ks, err := c.openKeystore(*pass)
	if err != nil {
		return err
	}

	secret, err := ks.IdentitySecret()
	if err != nil {
		return err
	}
	addr, err := ks.Address()
	if err != nil {
		return err
	}
	nonce, err := keystore.RandomNonce()
	if err != nil {
		return err
	}

	compiled, err := zkproof.GetCompiledCircuit(zkproof.KindEmergency)
	if err != nil {
		return fmt.Errorf("failed to compile emergency circuit: %w", err)
	}

	result, err := zkproof.NewEmergencyProver(compiled).Prove(
		zkproof.EmergencyWitness{
			EmergencyType: *emergencyType,
			Timestamp:     *timestamp,
			UserSecret:    secret,
			Nonce:         nonce,
			Severity:      *severity,
		},
		zkproof.EmergencyPublic{
			UserAddress:  addr,
			MinTimestamp: *notBefore,
			MaxTimestamp: *notAfter,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to prove declaration: %w", err)
	}

	bundle, err := authz.NewEmergencyBundle(result)
	if err != nil {
		return err
	}
	path, err := c.writeBundle(bundle)
	if err != nil {
		return err
	}

	level, _ := emergency.LevelForSeverity(*severity)
	fmt.Fprintf(c.output, "Emergency declared: %s\n", encodeField(result.Outputs.EmergencyHash))
	fmt.Fprintf(c.output, "Type: %s, severity %d\n", emergency.Type(*emergencyType), *severity)
	fmt.Fprintf(c.output, "Level: %s, %d guardian approval(s) required\n", level, emergency.RequiredApprovals(level))
	fmt.Fprintf(c.output, "Bundle: %s\n", path)
	return nil
}

// Respond proves registry membership for an emergency and writes the bundle
// to the outbox. The nullifier counter must not be reused across proofs.
func (c *CLI) Respond(args []string) error {
	fs := flag.NewFlagSet("respond", flag.ContinueOnError)
	fs.SetOutput(c.output)
	emergencyHash := fs.String("emergency", "", "emergency hash from the declaration")
	counter := fs.Uint64("counter", 0, "nullifier counter, fresh per proof")
	pass := fs.String("passphrase", "", "keystore encryption passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *emergencyHash == "" {
		return errors.New("usage: aegis-cli respond -emergency <hash> [-counter N]")
	}
	eh, err := decodeField(*emergencyHash)
	if err != nil {
		return err
	}

	ks, err := c.openKeystore(*pass)
	if err != nil {
		return err
	}

	reg, err := registry.Load(c.config.Registry.SnapshotPath)
	if err != nil {
		return fmt.Errorf("failed to load guardian registry: %w", err)
	}

	secret, err := ks.IdentitySecret()
	if err != nil {
		return err
	}
	nullifierScalar, err := ks.NullifierAt(*counter)
	if err != nil {
		return err
	}

	commitment, err := zkproof.HashFields(secret, eh, nullifierScalar)
	if err != nil {
		return err
	}
	index, ok := reg.FindCommitment(commitment)
	if !ok {
		return fmt.Errorf("commitment %s is not in registry version %d; ask the coordinator to publish it",
			encodeField(commitment), reg.Version())
	}

	siblings, version, err := reg.ProofFor(index)
	if err != nil {
		return err
	}
	root, _ := reg.Root()

	compiled, err := zkproof.GetCompiledCircuit(zkproof.KindIdentity)
	if err != nil {
		return fmt.Errorf("failed to compile identity circuit: %w", err)
	}

	result, err := zkproof.NewIdentityProver(compiled).Prove(
		zkproof.IdentityWitness{
			Secret:      secret,
			Nullifier:   nullifierScalar,
			Siblings:    siblings,
			MerkleIndex: index,
		},
		zkproof.IdentityPublic{
			MerkleRoot:    root,
			EmergencyHash: eh,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to prove membership: %w", err)
	}

	bundle, err := authz.NewIdentityBundle(result, version)
	if err != nil {
		return err
	}
	path, err := c.writeBundle(bundle)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.output, "Membership proven for emergency %s\n", *emergencyHash)
	fmt.Fprintf(c.output, "Registry version: %d, guardian index %d\n", version, index)
	fmt.Fprintf(c.output, "Nullifier: %s (single use)\n", encodeField(result.Outputs.NullifierHash))
	fmt.Fprintf(c.output, "Bundle: %s\n", path)
	return nil
}

// Authorize proves an operation authorization and writes the bundle to the
// outbox.
func (c *CLI) Authorize(args []string) error {
	fs := flag.NewFlagSet("authorize", flag.ContinueOnError)
	fs.SetOutput(c.output)
	op := fs.Int("op", 0, "operation type 1-10")
	target := fs.String("target", "", "target address (decimal)")
	amount := fs.String("amount", "0", "operation amount (decimal)")
	timestamp := fs.Int64("timestamp", 0, "approval unix time (default now)")
	level := fs.Int("level", 0, "active emergency level 1-3")
	minLevel := fs.Int("min-level", 1, "policy floor the level must meet")
	index := fs.Uint64("index", 0, "guardian registry index")
	pass := fs.String("passphrase", "", "keystore encryption passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *target == "" {
		return errors.New("usage: aegis-cli authorize -op N -target ADDR -amount N -level N")
	}
	targetAddr, err := parseDecimal(*target)
	if err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}
	amountValue, err := parseDecimal(*amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if *timestamp == 0 {
		*timestamp = time.Now().Unix()
	}

	ks, err := c.openKeystore(*pass)
	if err != nil {
		return err
	}
	guardianSecret, err := ks.GuardianSecret()
	if err != nil {
		return err
	}
	authNonce, err := keystore.RandomNonce()
	if err != nil {
		return err
	}

	compiled, err := zkproof.GetCompiledCircuit(zkproof.KindAuthorization)
	if err != nil {
		return fmt.Errorf("failed to compile authorization circuit: %w", err)
	}

	result, err := zkproof.NewAuthorizationProver(compiled).Prove(
		zkproof.AuthorizationWitness{
			GuardianSecret: guardianSecret,
			OperationType:  *op,
			AuthNonce:      authNonce,
			GuardianIndex:  *index,
		},
		zkproof.AuthorizationPublic{
			TargetAddress:  targetAddr,
			Amount:         amountValue,
			Timestamp:      *timestamp,
			EmergencyLevel: *level,
			MinAuthLevel:   *minLevel,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to prove authorization: %w", err)
	}

	bundle, err := authz.NewAuthorizationBundle(result)
	if err != nil {
		return err
	}
	path, err := c.writeBundle(bundle)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.output, "Operation authorized: %s\n", emergency.Operation(*op))
	fmt.Fprintf(c.output, "Tag: %s\n", encodeField(result.Outputs.AuthorizationTag))
	fmt.Fprintf(c.output, "Bundle: %s\n", path)
	return nil
}

// Verify checks proof bundles against the full verification pipeline and
// prints a per-bundle verdict. Replay state is per invocation only; the
// keeper holds the authoritative nullifier store.
func (c *CLI) Verify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(c.output)
	stale := fs.Bool("stale", false, "skip the freshness policy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		return errors.New("usage: aegis-cli verify [-stale] <bundle.json> [more...]")
	}

	bundles := make([]*authz.Bundle, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read bundle: %w", err)
		}
		b, err := authz.DecodeBundle(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		bundles[i] = b
	}

	// Identity bundles cannot be checked without the registry; the other
	// kinds verify fine without it.
	var reg authz.Registry
	loaded, err := registry.Load(c.config.Registry.SnapshotPath)
	if err == nil {
		reg = loaded
	} else if hasKind(bundles, zkproof.KindIdentity) {
		return fmt.Errorf("identity bundles need the guardian registry: %w", err)
	}

	cfg := authz.DefaultConfig()
	if *stale {
		cfg.RequireFreshProofs = false
	}

	svc, err := authz.NewService(cfg, reg, nullifier.NewStore())
	if err != nil {
		return err
	}

	results, stats := svc.VerifyBatch(bundles)
	for i, res := range results {
		name := filepath.Base(paths[i])
		if res.Err == nil {
			fmt.Fprintf(c.output, "ACCEPTED %s (%s)\n", name, res.Kind)
		} else {
			fmt.Fprintf(c.output, "REJECTED %s (%s): %v\n", name, res.Kind, res.Err)
		}
	}
	fmt.Fprintf(c.output, "\n%d accepted, %d rejected\n", stats.Accepted, stats.Rejected)

	if stats.Rejected > 0 {
		return fmt.Errorf("%d of %d bundles rejected", stats.Rejected, stats.Total)
	}
	return nil
}

// Root shows the guardian registry snapshot summary.
func (c *CLI) Root() error {
	reg, err := registry.Load(c.config.Registry.SnapshotPath)
	if err != nil {
		return fmt.Errorf("failed to load guardian registry: %w", err)
	}

	root, version := reg.Root()
	encoded, err := registry.EncodeCommitment(root)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.output, "=== Guardian Registry ===")
	fmt.Fprintf(c.output, "Snapshot: %s\n", c.config.Registry.SnapshotPath)
	fmt.Fprintf(c.output, "Version: %d\n", version)
	fmt.Fprintf(c.output, "Guardians: %d\n", reg.Size())
	fmt.Fprintf(c.output, "Root: %s\n", encoded)
	return nil
}

// openKeystore resolves the passphrase and decrypts the keystore file.
func (c *CLI) openKeystore(passFlag string) (*keystore.Keystore, error) {
	passphrase, err := resolvePassphrase(passFlag)
	if err != nil {
		return nil, err
	}
	ks, err := keystore.Load(c.config.Keystore.Path, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}
	return ks, nil
}

// writeBundle writes a bundle into the outbox with a write-then-rename so a
// watching keeper never sees a half-written file.
func (c *CLI) writeBundle(b *authz.Bundle) (string, error) {
	data, err := b.Encode()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.config.Bundles.OutboxDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create outbox: %w", err)
	}

	path := filepath.Join(c.config.Bundles.OutboxDir, fmt.Sprintf("%s-%s.json", b.Kind, b.ID))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to place bundle: %w", err)
	}
	return path, nil
}

// resolvePassphrase takes the flag value or falls back to the environment.
func resolvePassphrase(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(passphraseEnv); env != "" {
		return env, nil
	}
	return "", ErrNoPassphrase
}

// encodeField renders a field element in the canonical base58 form bundles
// use.
func encodeField(v *big.Int) string {
	b, err := zkproof.FieldBytes(v)
	if err != nil {
		return v.String()
	}
	return base58.Encode(b)
}

// decodeField parses the canonical base58 form back to a field element.
func decodeField(s string) (*big.Int, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid digest %q: expected 32 bytes, got %d", s, len(raw))
	}
	return zkproof.FieldFromBytes(raw), nil
}

// parseDecimal parses a non-negative decimal field value.
func parseDecimal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a decimal number", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%q is negative", s)
	}
	return v, nil
}

// hasKind reports whether any bundle in the batch has the given kind.
func hasKind(bundles []*authz.Bundle, kind zkproof.Kind) bool {
	for _, b := range bundles {
		if b != nil && b.Kind == kind {
			return true
		}
	}
	return false
}

// printUsage prints the CLI usage information to stdout.
func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo prints the CLI usage information to the given writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, "Usage: aegis-cli <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen                Create a guardian keystore and recovery phrase")
	fmt.Fprintln(w, "  recover <words...>    Rebuild the keystore from a recovery phrase")
	fmt.Fprintln(w, "  declare               Prove an emergency declaration")
	fmt.Fprintln(w, "  respond               Prove registry membership for an emergency")
	fmt.Fprintln(w, "  authorize             Prove an operation authorization")
	fmt.Fprintln(w, "  verify <bundle...>    Verify proof bundles")
	fmt.Fprintln(w, "  root                  Show the guardian registry root")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  aegis-cli keygen -passphrase hunter2")
	fmt.Fprintln(w, "  aegis-cli declare -type 1 -severity 7")
	fmt.Fprintln(w, "  aegis-cli respond -emergency 8fJk... -counter 0")
	fmt.Fprintln(w, "  aegis-cli authorize -op 1 -target 900101 -amount 2500 -level 2")
	fmt.Fprintln(w, "  aegis-cli verify inbox/emergency-1b9d6bcd.json")
}
