package memory

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// Seed describes the hospitals and departments loaded into a fresh store.
type Seed struct {
	Hospitals []SeedHospital `yaml:"hospitals"`
}

// SeedHospital is one hospital entry of a seed file.
type SeedHospital struct {
	ID          string           `yaml:"id"`
	Active      *bool            `yaml:"active"`
	Departments []SeedDepartment `yaml:"departments"`
}

// SeedDepartment is one department entry of a seed file.
type SeedDepartment struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	DailyCapacity     int    `yaml:"daily_capacity"`
	AvgServiceTimeMin int    `yaml:"avg_service_time_min"`
	Active            *bool  `yaml:"active"`
}

// LoadSeedFile reads a YAML seed file and applies it to the store.
func LoadSeedFile(store *Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	return store.Apply(seed)
}

// Apply registers every hospital and department in the seed.
func (s *Store) Apply(seed Seed) error {
	for _, h := range seed.Hospitals {
		if h.ID == "" {
			return errors.New("seed hospital without id")
		}
		hospitalActive := enabled(h.Active)
		s.PutHospital(h.ID, hospitalActive)
		for _, d := range h.Departments {
			if d.ID == "" {
				return fmt.Errorf("hospital %s: department without id", h.ID)
			}
			if d.DailyCapacity < 0 || d.AvgServiceTimeMin < 0 {
				return fmt.Errorf("department %s: capacity and service time must not be negative", d.ID)
			}
			s.PutDepartment(domain.Department{
				ID:                    d.ID,
				HospitalID:            h.ID,
				Name:                  d.Name,
				DailyCapacity:         d.DailyCapacity,
				AverageServiceTimeMin: d.AvgServiceTimeMin,
				IsActive:              enabled(d.Active),
				HospitalActive:        hospitalActive,
			})
		}
	}
	return nil
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}
