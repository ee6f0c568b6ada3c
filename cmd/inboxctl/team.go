package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/welldanyogia/webrana-inbox-backend/internal/app"
	"github.com/welldanyogia/webrana-inbox-backend/internal/cache"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"github.com/welldanyogia/webrana-inbox-backend/internal/services"
	"github.com/welldanyogia/webrana-inbox-backend/internal/validator"
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams and their receiving domains",
}

var (
	teamNameFlag     string
	teamDomainFlag   string
	teamInactiveFlag bool
	teamActiveOnly   bool
)

var teamAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a team for a receiving domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd.Context(), func(c *app.Components) error {
			return addTeam(cmd.Context(), c, teamNameFlag, teamDomainFlag, !teamInactiveFlag, cmd.OutOrStdout())
		})
	},
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd.Context(), func(c *app.Components) error {
			return listTeams(cmd.Context(), c, teamActiveOnly, cmd.OutOrStdout())
		})
	},
}

var teamVerifyCmd = &cobra.Command{
	Use:   "verify <domain>",
	Short: "Check that a team domain's MX records point at this server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd.Context(), func(c *app.Components) error {
			verifier := services.NewDNSVerifier(services.DefaultDNSVerifierConfig(c.Config.SMTPHostname))
			return verifyTeam(cmd.Context(), c, verifier, args[0], cmd.OutOrStdout())
		})
	},
}

func init() {
	teamAddCmd.Flags().StringVar(&teamNameFlag, "name", "", "Team name (required)")
	teamAddCmd.Flags().StringVar(&teamDomainFlag, "domain", "", "Receiving domain (required)")
	teamAddCmd.Flags().BoolVar(&teamInactiveFlag, "inactive", false, "Create the team without accepting mail yet")
	teamAddCmd.MarkFlagRequired("name")
	teamAddCmd.MarkFlagRequired("domain")

	teamListCmd.Flags().BoolVar(&teamActiveOnly, "active", false, "Only list active teams")

	teamCmd.AddCommand(teamAddCmd, teamListCmd, teamVerifyCmd)
	rootCmd.AddCommand(teamCmd)
}

func addTeam(ctx context.Context, c *app.Components, name, domain string, active bool, out io.Writer) error {
	name = validator.SanitizeString(name, 255)
	if name == "" {
		return fmt.Errorf("team name must not be empty")
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if err := validator.ValidateDomain(domain); err != nil {
		return fmt.Errorf("invalid domain %q: %w", domain, err)
	}

	team := &models.Team{Name: name, Domain: domain, IsActive: active}
	if err := c.Teams.Create(ctx, team); err != nil {
		return err
	}
	// a shared redis cache may still hold a stale entry
	if err := c.TeamCache.Invalidate(ctx, cache.TeamUpserted{Domain: domain}); err != nil {
		fmt.Fprintf(out, "warning: team cache not invalidated: %v\n", err)
	}

	fmt.Fprintf(out, "created team %d (%s) for %s\n", team.ID, team.Name, team.Domain)
	return nil
}

func listTeams(ctx context.Context, c *app.Components, activeOnly bool, out io.Writer) error {
	teams, err := c.Teams.List(ctx, activeOnly)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDOMAIN\tACTIVE")
	for _, t := range teams {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", t.ID, t.Name, t.Domain, t.IsActive)
	}
	return w.Flush()
}

type dnsVerifier interface {
	VerifyTeam(ctx context.Context, team *models.Team) (*services.DNSVerificationResult, error)
}

func verifyTeam(ctx context.Context, c *app.Components, verifier dnsVerifier, domain string, out io.Writer) error {
	team, err := c.Teams.GetByDomain(ctx, strings.ToLower(strings.TrimSpace(domain)))
	if err != nil {
		return fmt.Errorf("team for %s: %w", domain, err)
	}

	result, err := verifier.VerifyTeam(ctx, team)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "domain:   %s\n", result.Domain)
	fmt.Fprintf(out, "expected: %s\n", result.ExpectedHost)
	fmt.Fprintf(out, "mx:       %s\n", strings.Join(result.MXHosts, ", "))
	for _, e := range result.Errors {
		fmt.Fprintf(out, "error:    %s\n", e)
	}
	if !result.Ready {
		return fmt.Errorf("%s does not route mail to %s", result.Domain, result.ExpectedHost)
	}
	fmt.Fprintln(out, "ready")
	return nil
}
