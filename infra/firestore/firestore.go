package firestore

import (
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/firestore"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// SetupFirestore creates the (default) database holding the users and
// dashboards collections when STORAGE_BACKEND=firestore.
func SetupFirestore(ctx *pulumi.Context, prov *gcp.Provider) (*firestore.Database, error) {
	svc, err := projects.NewService(ctx, "firestore", &projects.ServiceArgs{
		Service: pulumi.String("firestore.googleapis.com"),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}

	gcpCfg := config.New(ctx, "gcp")

	// the API connects with firestore.NewClient(projectID), which only
	// reads the (default) database
	return firestore.NewDatabase(ctx, "portalDatabase", &firestore.DatabaseArgs{
		Project:                       pulumi.String(gcpCfg.Require("project")),
		Name:                          pulumi.String("(default)"),
		LocationId:                    pulumi.String(gcpCfg.Require("region")),
		Type:                          pulumi.String("FIRESTORE_NATIVE"),
		DeleteProtectionState:         pulumi.String("DELETE_PROTECTION_ENABLED"),
		PointInTimeRecoveryEnablement: pulumi.String("POINT_IN_TIME_RECOVERY_ENABLED"),
	},
		pulumi.Provider(prov),
		pulumi.DependsOn([]pulumi.Resource{svc}),
	)
}
