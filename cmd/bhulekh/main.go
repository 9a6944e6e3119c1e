package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bhulekhchain/bridge/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	bridgeURL string
	cfgFile   string
	authToken string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bhulekh",
	Short: "BhulekhChain bridge CLI",
	Long: `bhulekh is the command-line interface for the BhulekhChain bridge.

It manages the property mirror, the encumbrance lifecycle, and the
public-chain anchors from the terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".bhulekh"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if bridgeURL == "" {
			bridgeURL = viper.GetString("bridge_url")
		}
		if bridgeURL == "" {
			bridgeURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = loadSavedToken()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.bhulekh/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&bridgeURL, "bridge", "", "bridge base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "session token (default: saved by 'bhulekh login')")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(propertyCmd)
	rootCmd.AddCommand(encumbranceCmd)
	rootCmd.AddCommand(anchorCmd)
	rootCmd.AddCommand(institutionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client carrying the saved session token, if any.
func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if authToken != "" {
		opts = append(opts, client.WithBearerToken(authToken))
	}
	return client.New(bridgeURL, opts...)
}

func tokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bhulekh", "token")
}

func loadSavedToken() string {
	p := tokenPath()
	if p == "" {
		return ""
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) error {
	p := tokenPath()
	if p == "" {
		return fmt.Errorf("cannot determine home directory")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(token+"\n"), 0o600)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── login ────────────────────────────────────────────────────────────────────

var loginSecret string

var loginCmd = &cobra.Command{
	Use:   "login <institution-code>",
	Short: "Authenticate and save a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := loginSecret
		if secret == "" {
			secret = os.Getenv("BHULEKH_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("provide the secret via --secret or the BHULEKH_SECRET environment variable")
		}

		c, err := client.New(bridgeURL)
		if err != nil {
			return err
		}
		token, err := c.Login(context.Background(), args[0], secret)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := saveToken(token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Printf("✓ Logged in as %s (token saved to %s)\n", args[0], tokenPath())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginSecret, "secret", "", "institution secret (or set BHULEKH_SECRET)")
}

// ── property ─────────────────────────────────────────────────────────────────

var propertyCmd = &cobra.Command{
	Use:   "property",
	Short: "Manage the mirrored property records",
}

var (
	propOwnerName    string
	propOwnerAadhaar string
	propLandUse      string
)

var propertyRegisterCmd = &cobra.Command{
	Use:   "register <property-id>",
	Short: "Mirror a property row on the bridge (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		prop, err := c.RegisterProperty(context.Background(), client.RegisterPropertyRequest{
			PropertyID:   args[0],
			OwnerName:    propOwnerName,
			OwnerAadhaar: propOwnerAadhaar,
			LandUse:      propLandUse,
		})
		if err != nil {
			return fmt.Errorf("register property: %w", err)
		}
		fmt.Printf("✓ Property mirrored: %s (%s / %s)\n", prop.PropertyID, prop.Status, prop.EncumbranceStatus)
		return nil
	},
}

var propertyGetCmd = &cobra.Command{
	Use:   "get <property-id>",
	Short: "Show one property",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		prop, err := c.GetProperty(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(prop)
	},
}

var propertyListCmd = &cobra.Command{
	Use:   "list <state-code>",
	Short: "List properties in a state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		props, err := c.ListProperties(context.Background(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROPERTY ID\tOWNER\tSTATUS\tENCUMBRANCE")
		for _, p := range props {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.PropertyID, p.OwnerName, p.Status, p.EncumbranceStatus)
		}
		return w.Flush()
	},
}

var propertyAuditCmd = &cobra.Command{
	Use:   "audit <property-id>",
	Short: "Show and verify a property's audit chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		entries, err := c.AuditTrail(ctx, args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTIMESTAMP\tACTION\tACTOR\tHASH")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				e.Seq, e.Timestamp.Format(time.RFC3339), e.Action, e.Actor, e.Hash[:12])
		}
		if err := w.Flush(); err != nil {
			return err
		}

		valid, err := c.VerifyAuditTrail(ctx, args[0])
		if err != nil {
			return err
		}
		if valid {
			fmt.Println("\n✓ Chain intact")
		} else {
			fmt.Println("\n✗ CHAIN BROKEN — the mirror has been tampered with")
		}
		return nil
	},
}

var propertyFreezeCmd = &cobra.Command{
	Use:   "freeze <property-id>",
	Short: "Place a court freeze on a property (court)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.FreezeProperty(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Property frozen: %s\n", args[0])
		return nil
	},
}

var propertyUnfreezeCmd = &cobra.Command{
	Use:   "unfreeze <property-id>",
	Short: "Lift a court freeze (court)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.UnfreezeProperty(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Property unfrozen: %s\n", args[0])
		return nil
	},
}

func init() {
	propertyRegisterCmd.Flags().StringVar(&propOwnerName, "owner", "", "owner name")
	propertyRegisterCmd.Flags().StringVar(&propOwnerAadhaar, "aadhaar", "", "owner Aadhaar number (pseudonymized server-side)")
	propertyRegisterCmd.Flags().StringVar(&propLandUse, "land-use", "", "land use classification")
	_ = propertyRegisterCmd.MarkFlagRequired("owner")
	_ = propertyRegisterCmd.MarkFlagRequired("aadhaar")

	propertyCmd.AddCommand(propertyRegisterCmd)
	propertyCmd.AddCommand(propertyGetCmd)
	propertyCmd.AddCommand(propertyListCmd)
	propertyCmd.AddCommand(propertyAuditCmd)
	propertyCmd.AddCommand(propertyFreezeCmd)
	propertyCmd.AddCommand(propertyUnfreezeCmd)
}

// ── encumbrance ──────────────────────────────────────────────────────────────

var encumbranceCmd = &cobra.Command{
	Use:     "encumbrance",
	Aliases: []string{"enc"},
	Short:   "Manage the encumbrance lifecycle",
}

var (
	encType        string
	encInstitution string
	encBranch      string
	encLoanAccount string
	encSanctioned  int64
	encOutstanding int64
	encInterest    int64
	encCourtRef    string
)

var encumbranceAddCmd = &cobra.Command{
	Use:   "add <property-id>",
	Short: "Record a new encumbrance (bank, court)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		enc, sync, err := c.AddEncumbrance(context.Background(), client.AddEncumbranceRequest{
			PropertyID:        args[0],
			Type:              encType,
			InstitutionName:   encInstitution,
			BranchCode:        encBranch,
			LoanAccountNumber: encLoanAccount,
			SanctionedAmount:  encSanctioned,
			OutstandingAmount: encOutstanding,
			InterestRate:      encInterest,
			CourtOrderRef:     encCourtRef,
		})
		if err != nil {
			return fmt.Errorf("add encumbrance: %w", err)
		}

		fmt.Printf("✓ Encumbrance recorded: %s\n", enc.EncumbranceID)
		if sync.Synced {
			fmt.Printf("  Ledger tx: %s\n", sync.LedgerTxID)
		} else {
			fmt.Println("  ⚠ Ledger unreachable — recorded mirror-only, pending resync")
		}
		return nil
	},
}

var encumbranceGetCmd = &cobra.Command{
	Use:   "get <encumbrance-id>",
	Short: "Show one encumbrance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		enc, err := c.GetEncumbrance(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(enc)
	},
}

var encumbranceReleaseCmd = &cobra.Command{
	Use:   "release <encumbrance-id>",
	Short: "Release an active encumbrance (bank, court)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		enc, err := c.ReleaseEncumbrance(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("release: %w", err)
		}
		fmt.Printf("✓ Encumbrance released: %s (release tx %s)\n", enc.EncumbranceID, enc.ReleaseTxID)
		return nil
	},
}

var encumbranceListCmd = &cobra.Command{
	Use:   "list <property-id>",
	Short: "List a property's encumbrances, released ones included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		encs, err := c.PropertyEncumbrances(context.Background(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tINSTITUTION\tSYNCED")
		for _, e := range encs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
				e.EncumbranceID, e.Type, e.Status, e.InstitutionName, e.Synced)
		}
		return w.Flush()
	},
}

var encumbranceResyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Replay unsynced mirror rows to the ledger (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		repaired, err := c.ResyncEncumbrances(context.Background())
		if err != nil {
			return fmt.Errorf("resync: %w", err)
		}
		fmt.Printf("✓ Resync complete: %d row(s) repaired\n", repaired)
		return nil
	},
}

func init() {
	encumbranceAddCmd.Flags().StringVar(&encType, "type", "MORTGAGE", "encumbrance type: MORTGAGE, LIEN, or COURT_ORDER")
	encumbranceAddCmd.Flags().StringVar(&encInstitution, "institution", "", "lending/ordering institution name")
	encumbranceAddCmd.Flags().StringVar(&encBranch, "branch", "", "branch code")
	encumbranceAddCmd.Flags().StringVar(&encLoanAccount, "loan-account", "", "loan account number")
	encumbranceAddCmd.Flags().Int64Var(&encSanctioned, "sanctioned", 0, "sanctioned amount in paisa")
	encumbranceAddCmd.Flags().Int64Var(&encOutstanding, "outstanding", 0, "outstanding amount in paisa")
	encumbranceAddCmd.Flags().Int64Var(&encInterest, "interest", 0, "interest rate in basis points")
	encumbranceAddCmd.Flags().StringVar(&encCourtRef, "court-ref", "", "court order reference (COURT_ORDER type)")
	_ = encumbranceAddCmd.MarkFlagRequired("institution")

	encumbranceCmd.AddCommand(encumbranceAddCmd)
	encumbranceCmd.AddCommand(encumbranceGetCmd)
	encumbranceCmd.AddCommand(encumbranceReleaseCmd)
	encumbranceCmd.AddCommand(encumbranceListCmd)
	encumbranceCmd.AddCommand(encumbranceResyncCmd)
}

// ── anchor ───────────────────────────────────────────────────────────────────

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Manage public-chain anchors",
}

var (
	anchorState   string
	anchorChannel string
	anchorStart   uint64
	anchorEnd     uint64
	anchorTxID    string
	anchorLimit   int
)

var anchorSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Anchor a block range now (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rec, err := c.SubmitAnchor(context.Background(), anchorState, anchorChannel, anchorStart, anchorEnd)
		if errors.Is(err, client.ErrAlreadyAnchored) {
			fmt.Printf("Range already anchored by %s (seq %d, tx %s)\n",
				rec.AnchorID, rec.AnchorSeq, rec.ChainTxID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("submit anchor: %w", err)
		}
		fmt.Printf("✓ Anchored blocks [%d, %d) for %s\n", rec.BlockRange.Start, rec.BlockRange.End, rec.StateCode)
		fmt.Printf("  Anchor:     %s (seq %d)\n", rec.AnchorID, rec.AnchorSeq)
		fmt.Printf("  Chain tx:   %s (round %d)\n", rec.ChainTxID, rec.ConfirmedRound)
		fmt.Printf("  State root: %s\n", rec.StateRoot)
		return nil
	},
}

var anchorResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Settle a timed-out anchor submission before retrying (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rec, err := c.ResolveAnchor(context.Background(), anchorState, anchorChannel, anchorStart, anchorEnd, anchorTxID)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		if rec == nil {
			fmt.Println("Transaction unknown or still pending — resubmission is safe.")
			return nil
		}
		fmt.Printf("✓ Transaction confirmed after all: anchor %s recorded (seq %d)\n", rec.AnchorID, rec.AnchorSeq)
		return nil
	},
}

var anchorListCmd = &cobra.Command{
	Use:   "list <state-code>",
	Short: "List anchors for a state, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		recs, err := c.ListAnchors(context.Background(), args[0], anchorLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ANCHOR ID\tSEQ\tBLOCKS\tCHAIN TX\tVERIFIED")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%d\t[%d, %d)\t%s\t%t\n",
				r.AnchorID, r.AnchorSeq, r.BlockRange.Start, r.BlockRange.End, r.ChainTxID, r.Verified)
		}
		return w.Flush()
	},
}

var anchorLatestCmd = &cobra.Command{
	Use:   "latest <state-code>",
	Short: "Show the newest anchor for a state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rec, err := c.LatestAnchor(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var anchorVerifyCmd = &cobra.Command{
	Use:   "verify <anchor-id>",
	Short: "Re-check a stored anchor against the public chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ok, err := c.VerifyAnchor(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if ok {
			fmt.Println("✓ On-chain note matches the stored record")
		} else {
			fmt.Println("✗ MISMATCH — the stored record disagrees with the chain")
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{anchorSubmitCmd, anchorResolveCmd} {
		cmd.Flags().StringVar(&anchorState, "state", "", "state code (e.g. AP)")
		cmd.Flags().StringVar(&anchorChannel, "channel", "land-registry-channel", "Fabric channel id")
		cmd.Flags().Uint64Var(&anchorStart, "start", 0, "block range start (inclusive)")
		cmd.Flags().Uint64Var(&anchorEnd, "end", 0, "block range end (exclusive)")
		_ = cmd.MarkFlagRequired("state")
		_ = cmd.MarkFlagRequired("end")
	}
	anchorResolveCmd.Flags().StringVar(&anchorTxID, "tx", "", "chain transaction id from the timed-out submission")
	_ = anchorResolveCmd.MarkFlagRequired("tx")
	anchorListCmd.Flags().IntVar(&anchorLimit, "limit", 20, "maximum anchors to list")

	anchorCmd.AddCommand(anchorSubmitCmd)
	anchorCmd.AddCommand(anchorResolveCmd)
	anchorCmd.AddCommand(anchorListCmd)
	anchorCmd.AddCommand(anchorLatestCmd)
	anchorCmd.AddCommand(anchorVerifyCmd)
}

// ── institution ──────────────────────────────────────────────────────────────

var institutionCmd = &cobra.Command{
	Use:   "institution",
	Short: "Manage API principals (admin)",
}

var (
	instName   string
	instRole   string
	instMspID  string
	instSecret string
)

var institutionCreateCmd = &cobra.Command{
	Use:   "create <code>",
	Short: "Onboard a new institution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		inst, err := c.CreateInstitution(context.Background(), args[0], instName, instRole, instMspID, instSecret)
		if err != nil {
			return fmt.Errorf("create institution: %w", err)
		}
		fmt.Printf("✓ Institution onboarded: %s (%s, role %s)\n", inst.Code, inst.Name, inst.Role)
		return nil
	},
}

var institutionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all institutions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		insts, err := c.ListInstitutions(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tROLE\tMSP ID")
		for _, i := range insts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", i.Code, i.Name, i.Role, i.MspID)
		}
		return w.Flush()
	},
}

func init() {
	institutionCreateCmd.Flags().StringVar(&instName, "name", "", "institution display name")
	institutionCreateCmd.Flags().StringVar(&instRole, "role", "bank", "role: bank, court, or admin")
	institutionCreateCmd.Flags().StringVar(&instMspID, "msp-id", "", "Fabric MSP id")
	institutionCreateCmd.Flags().StringVar(&instSecret, "secret", "", "login secret (min 16 chars)")
	_ = institutionCreateCmd.MarkFlagRequired("name")
	_ = institutionCreateCmd.MarkFlagRequired("secret")

	institutionCmd.AddCommand(institutionCreateCmd)
	institutionCmd.AddCommand(institutionListCmd)
}

// ── status ───────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the bridge's dependency health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		healthy, raw, err := c.Health(context.Background())
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}

		var report struct {
			Components map[string]struct {
				Healthy bool   `json:"healthy"`
				Error   string `json:"error"`
			} `json:"components"`
		}
		if err := json.Unmarshal(raw, &report); err != nil {
			return fmt.Errorf("decode health report: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COMPONENT\tHEALTHY\tERROR")
		for name, comp := range report.Components {
			fmt.Fprintf(w, "%s\t%t\t%s\n", name, comp.Healthy, comp.Error)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if healthy {
			fmt.Println("\n✓ Bridge healthy")
		} else {
			fmt.Println("\n✗ Bridge degraded")
		}
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bhulekh CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bhulekh %s (BhulekhChain bridge)\n", version)
	},
}
