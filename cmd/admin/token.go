package main

import (
	"fmt"

	"github.com/adcp/salesagent/internal/auth"
	"github.com/adcp/salesagent/internal/rbac"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a principal",
	Long:  "Sign a JWT with JWT_SECRET carrying the tenant, principal and role claims the API expects.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")
		principalID, _ := cmd.Flags().GetString("principal")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if !rbac.IsValidRole(role) {
			return eris.Errorf("unknown role %q", role)
		}
		if ttl <= 0 {
			ttl = cfg.JWTExpiration
		}

		token, err := auth.GenerateJWT(cfg.JWTSecret, tenantID, principalID, role, ttl)
		if err != nil {
			return eris.Wrap(err, "token: sign")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("tenant", "", "tenant id")
	tokenCmd.Flags().String("principal", "", "principal id")
	tokenCmd.Flags().String("role", rbac.RolePrincipal, "principal, reviewer or admin")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (defaults to JWT_EXPIRATION_HOURS)")
	_ = tokenCmd.MarkFlagRequired("tenant")
	_ = tokenCmd.MarkFlagRequired("principal")
}
