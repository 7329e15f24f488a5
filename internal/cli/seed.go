package cli

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
	"github.com/noah-isme/sos-dispatch-api/pkg/config"
)

// SeedFile is the YAML document accepted by the seed command and SEED_FILE.
type SeedFile struct {
	Users        []SeedUser        `yaml:"users"`
	HelpRequests []SeedHelpRequest `yaml:"help_requests"`
}

// SeedUser describes one directory entry.
type SeedUser struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Email     string        `yaml:"email"`
	Phone     string        `yaml:"phone,omitempty"`
	Role      string        `yaml:"role"`
	Verified  bool          `yaml:"verified"`
	Available *bool         `yaml:"available,omitempty"`
	Rating    *float64      `yaml:"rating,omitempty"`
	Location  *SeedLocation `yaml:"location,omitempty"`
}

// SeedLocation is a point with an optional address.
type SeedLocation struct {
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
	Address string  `yaml:"address,omitempty"`
}

// SeedHelpRequest describes a request to preload. Status defaults to pending.
type SeedHelpRequest struct {
	ID                string       `yaml:"id"`
	RequesterID       string       `yaml:"requester_id"`
	Location          SeedLocation `yaml:"location"`
	Status            string       `yaml:"status,omitempty"`
	AssignedVolunteer string       `yaml:"assigned_volunteer,omitempty"`
	DeclinedBy        []string     `yaml:"declined_by,omitempty"`
	CreatedAt         time.Time    `yaml:"created_at,omitempty"`
}

// SeedResult counts records inserted by ApplySeed.
type SeedResult struct {
	Users        int
	HelpRequests int
	Skipped      int
}

type seedUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type seedRequestStore interface {
	GetByID(ctx context.Context, id string) (*models.HelpRequest, error)
	Create(ctx context.Context, req *models.HelpRequest) error
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes YAML seed data. Unknown keys are rejected.
func ParseSeed(raw []byte) (*SeedFile, error) {
	var data SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, u := range data.Users {
		if u.ID == "" || u.Email == "" {
			return nil, fmt.Errorf("seed user %d: id and email are required", i)
		}
		if !models.UserRole(strings.ToUpper(u.Role)).Valid() {
			return nil, fmt.Errorf("seed user %s: unknown role %q", u.ID, u.Role)
		}
	}
	for i, r := range data.HelpRequests {
		if r.ID == "" || r.RequesterID == "" {
			return nil, fmt.Errorf("seed help request %d: id and requester_id are required", i)
		}
		if r.Status != "" && !models.HelpRequestStatus(strings.ToLower(r.Status)).Valid() {
			return nil, fmt.Errorf("seed help request %s: unknown status %q", r.ID, r.Status)
		}
	}
	return &data, nil
}

// ApplySeed inserts every record whose id is not stored yet.
func ApplySeed(ctx context.Context, data *SeedFile, users seedUserStore, requests seedRequestStore) (SeedResult, error) {
	var result SeedResult
	now := time.Now().UTC()

	for _, u := range data.Users {
		_, err := users.FindByID(ctx, u.ID)
		exists, err := seedExists(err)
		if err != nil {
			return result, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		if exists {
			result.Skipped++
			continue
		}
		if err := users.Create(ctx, u.toModel(now)); err != nil {
			return result, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		result.Users++
	}

	for _, r := range data.HelpRequests {
		_, err := requests.GetByID(ctx, r.ID)
		exists, err := seedExists(err)
		if err != nil {
			return result, fmt.Errorf("seed help request %s: %w", r.ID, err)
		}
		if exists {
			result.Skipped++
			continue
		}
		if err := requests.Create(ctx, r.toModel(now)); err != nil {
			return result, fmt.Errorf("seed help request %s: %w", r.ID, err)
		}
		result.HelpRequests++
	}
	return result, nil
}

func seedExists(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

func (u SeedUser) toModel(now time.Time) *models.User {
	user := &models.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     strings.ToLower(u.Email),
		Phone:     u.Phone,
		Role:      models.UserRole(strings.ToUpper(u.Role)),
		Verified:  u.Verified,
		Available: u.Available,
		Rating:    u.Rating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if u.Location != nil {
		user.Location = &models.Location{Lat: u.Location.Lat, Lng: u.Location.Lng, Address: u.Location.Address}
	}
	if user.Role == models.RoleVolunteer && user.Available == nil {
		available := true
		user.Available = &available
	}
	return user
}

func (r SeedHelpRequest) toModel(now time.Time) *models.HelpRequest {
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	req := &models.HelpRequest{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		Location:    &models.Location{Lat: r.Location.Lat, Lng: r.Location.Lng, Address: r.Location.Address},
		Status:      models.HelpRequestStatus(strings.ToLower(r.Status)),
		DeclinedBy:  models.VolunteerSet{},
		CreatedAt:   created,
	}
	if req.Status == "" {
		req.Status = models.HelpRequestStatusPending
	}
	for _, id := range r.DeclinedBy {
		req.DeclinedBy.Add(id)
	}
	if r.AssignedVolunteer != "" {
		volunteer := r.AssignedVolunteer
		req.AssignedVolunteer = &volunteer
		req.AcceptedAt = &created
	}
	return req
}

// NewSeedCommand loads a YAML seed file into the configured SQL store.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and help requests from a YAML file",
		Long: `Load users and help requests from a YAML file into the configured database.

Records whose id already exists are skipped, so the command can be rerun.

Example:
  sos-dispatch seed --driver sqlite --file ./seed.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = rootOpts.cfg.Store.SeedFile
			}
			if file == "" {
				return errors.New("no seed file: pass --file or set SEED_FILE")
			}
			return runSeed(cmd.Context(), rootOpts, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the YAML seed file")
	return cmd
}

func runSeed(ctx context.Context, opts *RootOptions, file string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.cfg.Store.Driver == config.StoreDriverMemory {
		return errors.New("seed needs a database driver; the memory store is seeded at startup via SEED_FILE")
	}

	data, err := LoadSeed(file)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, opts.cfg, opts.log)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	result, err := ApplySeed(ctx, data, st.users, st.requests)
	if err != nil {
		return err
	}
	opts.log.Info("seed applied",
		zap.String("file", file),
		zap.Int("users", result.Users),
		zap.Int("help_requests", result.HelpRequests),
		zap.Int("skipped", result.Skipped),
	)
	return nil
}
