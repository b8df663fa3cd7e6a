package identity

import (
	"strings"

	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/identityplatform"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// SetupIdentity enables Identity Platform for the portal's Firebase
// sign-in. portal:authorizedDomains is a comma separated list of the
// hosts serving the SPA.
func SetupIdentity(ctx *pulumi.Context, prov *gcp.Provider) (*identityplatform.Config, error) {
	portalCfg := config.New(ctx, "portal")

	domains := pulumi.StringArray{pulumi.String("localhost")}
	for _, d := range strings.Split(portalCfg.Get("authorizedDomains"), ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, pulumi.String(d))
		}
	}

	return identityplatform.NewConfig(ctx,
		"portalIdentityConfig",
		&identityplatform.ConfigArgs{
			AuthorizedDomains: domains,
			SignIn: &identityplatform.ConfigSignInArgs{
				Email: &identityplatform.ConfigSignInEmailArgs{
					Enabled:          pulumi.Bool(true),
					PasswordRequired: pulumi.Bool(true),
				},
			},
		},
		pulumi.Provider(prov),
	)
}
