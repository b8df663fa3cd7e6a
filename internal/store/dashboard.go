package store

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/models"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

const dashboardsCollection = "portal_dashboards"

// dashboardDoc keeps the tree as a JSON body. Tile content is a sealed
// interface that Firestore cannot map field by field.
type dashboardDoc struct {
	ID        string    `firestore:"id"`
	Name      string    `firestore:"name"`
	Body      string    `firestore:"body"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func encodeDashboard(d *models.Dashboard) (string, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func decodeDashboard(body []byte) (*models.Dashboard, error) {
	var d models.Dashboard
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

type dashboardStore struct {
	client *firestore.Client
}

func NewDashboardStore(client *firestore.Client) *dashboardStore {
	return &dashboardStore{client: client}
}

func (s *dashboardStore) collection() *firestore.CollectionRef {
	return s.client.Collection(dashboardsCollection)
}

func (s *dashboardStore) List(ctx context.Context) ([]*models.Dashboard, error) {
	iter := s.collection().OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var dashboards []*models.Dashboard
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to list dashboards", err)
		}
		var doc dashboardDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to parse dashboard document", err)
		}
		dash, err := decodeDashboard([]byte(doc.Body))
		if err != nil {
			return nil, errs.NewDatabaseError("read", "failed to decode dashboard "+doc.ID, err)
		}
		dashboards = append(dashboards, dash)
	}
	return dashboards, nil
}

func (s *dashboardStore) doc(d *models.Dashboard) (dashboardDoc, error) {
	body, err := encodeDashboard(d)
	if err != nil {
		return dashboardDoc{}, errs.NewDatabaseError("update", "failed to encode dashboard", err)
	}
	return dashboardDoc{ID: d.ID, Name: d.Name, Body: body, UpdatedAt: d.UpdatedAt}, nil
}

func (s *dashboardStore) Put(ctx context.Context, d *models.Dashboard) error {
	doc, err := s.doc(d)
	if err != nil {
		return err
	}
	if _, err := s.collection().Doc(d.ID).Set(ctx, doc); err != nil {
		return errs.NewDatabaseError("update", "failed to write dashboard", err)
	}
	return nil
}

func (s *dashboardStore) Delete(ctx context.Context, id string) error {
	if _, err := s.collection().Doc(id).Delete(ctx); err != nil {
		return errs.NewDatabaseError("delete", "failed to delete dashboard", err)
	}
	return nil
}

type bulkDashboardJob struct {
	dashboardID string
	job         *firestore.BulkWriterJob
}

// ReplaceAll makes the collection hold exactly the given dashboards.
func (s *dashboardStore) ReplaceAll(ctx context.Context, dashboards []*models.Dashboard) error {
	log := logger.FromContext(ctx)
	coll := s.collection()

	existing, err := coll.Documents(ctx).GetAll()
	if err != nil {
		return errs.NewDatabaseError("read", "failed to list dashboards", err)
	}
	keep := make(map[string]struct{}, len(dashboards))
	for _, d := range dashboards {
		keep[d.ID] = struct{}{}
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]bulkDashboardJob, 0, len(dashboards)+len(existing))
	for _, d := range dashboards {
		doc, err := s.doc(d)
		if err != nil {
			bw.End()
			return err
		}
		j, err := bw.Set(coll.Doc(d.ID), doc)
		if err != nil {
			bw.End()
			return errs.NewDatabaseError("update", "failed to schedule dashboard write", err)
		}
		jobs = append(jobs, bulkDashboardJob{dashboardID: d.ID, job: j})
	}
	for _, snap := range existing {
		if _, ok := keep[snap.Ref.ID]; ok {
			continue
		}
		j, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return errs.NewDatabaseError("delete", "failed to schedule dashboard delete", err)
		}
		jobs = append(jobs, bulkDashboardJob{dashboardID: snap.Ref.ID, job: j})
	}
	bw.End()

	for _, entry := range jobs {
		if _, err := entry.job.Results(); err != nil {
			log.Error("failed to replace dashboard", "dashboard_id", entry.dashboardID, "error", err)
			return errs.NewDatabaseError("update", "failed to replace dashboards", err)
		}
	}
	return nil
}
