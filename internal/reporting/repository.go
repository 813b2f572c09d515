package reporting

import (
	"context"
	"sort"

	"github.com/clinicops/visitdesk/internal/users"
	"github.com/clinicops/visitdesk/internal/visits"
)

const topDoctorsLimit = 5

// Repository computes the dashboard aggregate from the primary store.
type Repository interface {
	Collect(ctx context.Context) (*Stats, error)
}

// InMemoryRepository derives the aggregate from the in-memory visit and
// user stores. It backs the dashboard when no database is configured.
type InMemoryRepository struct {
	visits visits.Repository
	users  users.Repository
}

// NewInMemoryRepository creates a stats repository over in-memory stores.
func NewInMemoryRepository(visitRepo visits.Repository, userRepo users.Repository) *InMemoryRepository {
	return &InMemoryRepository{visits: visitRepo, users: userRepo}
}

// Collect walks every visit and tallies the aggregate.
func (r *InMemoryRepository) Collect(ctx context.Context) (*Stats, error) {
	all, err := r.visits.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TopDoctors: []DoctorLoad{}}
	counts := make(map[string]*DoctorLoad)
	for _, v := range all {
		stats.TotalVisits++
		switch v.Status {
		case visits.StatusCompleted:
			stats.CompletedVisits++
			stats.TotalRevenue += v.TotalAmount
		case visits.StatusPending:
			stats.PendingVisits++
		case visits.StatusInProgress:
			stats.InProgressVisits++
		}

		load, ok := counts[v.DoctorID.String()]
		if !ok {
			load = &DoctorLoad{DoctorID: v.DoctorID}
			if v.Doctor != nil {
				load.Name = v.Doctor.Name
				load.Email = v.Doctor.Email
			}
			counts[v.DoctorID.String()] = load
		}
		load.VisitCount++
	}
	if stats.CompletedVisits > 0 {
		stats.AverageVisitCost = stats.TotalRevenue / float64(stats.CompletedVisits)
	}

	if stats.TotalPatients, err = r.users.CountByRole(ctx, users.RolePatient); err != nil {
		return nil, err
	}
	if stats.TotalDoctors, err = r.users.CountByRole(ctx, users.RoleDoctor); err != nil {
		return nil, err
	}

	for _, load := range counts {
		stats.TopDoctors = append(stats.TopDoctors, *load)
	}
	sort.Slice(stats.TopDoctors, func(i, j int) bool {
		a, b := stats.TopDoctors[i], stats.TopDoctors[j]
		if a.VisitCount == b.VisitCount {
			return a.DoctorID.String() < b.DoctorID.String()
		}
		return a.VisitCount > b.VisitCount
	})
	if len(stats.TopDoctors) > topDoctorsLimit {
		stats.TopDoctors = stats.TopDoctors[:topDoctorsLimit]
	}
	return stats, nil
}
