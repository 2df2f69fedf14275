/*
orgchart.go - Static department -> sector -> officer tree

STRUCTURE:
  departments:
    BORDER_CONTROL:
      name: Kontrolli Kufitar
      director: DIR001
      administrator: ADM001
      sectors:
        NORTH_SECTOR:
          name: Sektori Verior
          chief: SC001
          officers: [OFF001, OFF002, OFF003]

  The chart can be loaded from YAML (LoadOrgChart) or taken from
  DefaultOrgChart(). Resolve() walks it once per call through a prebuilt
  officer index.

UNKNOWN OFFICERS:
  Resolve never invents a chain. It returns Known=false and leaves the choice
  of fallback (quarantine) or rejection to the controller's policy.
*/
package access

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type Sector struct {
	Name     string   `yaml:"name" json:"name"`
	Chief    string   `yaml:"chief" json:"chief"`
	Officers []string `yaml:"officers" json:"officers"`
}

type Department struct {
	Name          string            `yaml:"name" json:"name"`
	Director      string            `yaml:"director" json:"director"`
	Administrator string            `yaml:"administrator" json:"administrator"`
	Sectors       map[string]Sector `yaml:"sectors" json:"sectors"`
}

// Chain is the supervising hierarchy above one officer.
type Chain struct {
	Department    string `json:"department,omitempty"`
	Sector        string `json:"sector,omitempty"`
	SectorChief   string `json:"sector_chief"`
	Administrator string `json:"administrator"`
	Director      string `json:"director"`
}

// Resolution is the tagged result of an officer lookup.
type Resolution struct {
	Chain Chain `json:"chain"`
	Known bool  `json:"known"`
}

// DefaultFallbackChain is assigned to unknown officers under the quarantine policy.
var DefaultFallbackChain = Chain{SectorChief: "SC999", Administrator: "ADM999", Director: "DIR999"}

type OrgChart struct {
	Departments map[string]Department `yaml:"departments" json:"departments"`

	officers map[string]Chain
}

// NewOrgChart validates the departments and indexes every officer.
func NewOrgChart(departments map[string]Department) (*OrgChart, error) {
	c := &OrgChart{Departments: departments}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseOrgChart reads a YAML document.
func ParseOrgChart(data []byte) (*OrgChart, error) {
	var doc struct {
		Departments map[string]Department `yaml:"departments"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse org chart: %v", ErrInvalidRequest, err)
	}
	return NewOrgChart(doc.Departments)
}

// LoadOrgChart reads a YAML file.
func LoadOrgChart(path string) (*OrgChart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read org chart: %w", err)
	}
	return ParseOrgChart(data)
}

func (c *OrgChart) index() error {
	if len(c.Departments) == 0 {
		return fmt.Errorf("%w: org chart has no departments", ErrInvalidRequest)
	}
	c.officers = make(map[string]Chain)
	for _, deptID := range sortedKeys(c.Departments) {
		dept := c.Departments[deptID]
		if dept.Director == "" || dept.Administrator == "" {
			return fmt.Errorf("%w: department %s needs a director and an administrator", ErrInvalidRequest, deptID)
		}
		for _, sectorID := range sortedKeys(dept.Sectors) {
			sector := dept.Sectors[sectorID]
			if sector.Chief == "" {
				return fmt.Errorf("%w: sector %s has no chief", ErrInvalidRequest, sectorID)
			}
			for _, officer := range sector.Officers {
				if prev, dup := c.officers[officer]; dup {
					return fmt.Errorf("%w: officer %s listed in both %s and %s", ErrInvalidRequest, officer, prev.Sector, sectorID)
				}
				c.officers[officer] = Chain{
					Department:    deptID,
					Sector:        sectorID,
					SectorChief:   sector.Chief,
					Administrator: dept.Administrator,
					Director:      dept.Director,
				}
			}
		}
	}
	return nil
}

// Resolve returns the officer's supervising chain.
func (c *OrgChart) Resolve(officerID string) Resolution {
	chain, ok := c.officers[officerID]
	return Resolution{Chain: chain, Known: ok}
}

// Users lists everyone in the chart as HierarchyUsers, ordered by ID.
func (c *OrgChart) Users() []HierarchyUser {
	var users []HierarchyUser
	for _, deptID := range sortedKeys(c.Departments) {
		dept := c.Departments[deptID]
		var chiefs []string
		for _, sectorID := range sortedKeys(dept.Sectors) {
			sector := dept.Sectors[sectorID]
			chiefs = append(chiefs, sector.Chief)
			for _, officer := range sector.Officers {
				users = append(users, HierarchyUser{
					ID: officer, Role: RoleOfficer, Level: LevelOfficer,
					Department: deptID, SectorID: sectorID,
				})
			}
			users = append(users, HierarchyUser{
				ID: sector.Chief, Role: RoleSectorChief, Level: LevelSectorChief,
				Department: deptID, SectorID: sectorID,
				Subordinates: append([]string(nil), sector.Officers...),
			})
		}
		users = append(users,
			HierarchyUser{ID: dept.Administrator, Role: RoleAdmin, Level: LevelDirector, Department: deptID},
			HierarchyUser{ID: dept.Director, Role: RoleDirector, Level: LevelDirector, Department: deptID, Subordinates: chiefs},
		)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// DEFAULT CHART
// =============================================================================

// DefaultOrgChart returns the customs administration's standing structure.
func DefaultOrgChart() *OrgChart {
	c, err := NewOrgChart(map[string]Department{
		"BORDER_CONTROL": {
			Name: "Kontrolli Kufitar", Director: "DIR001", Administrator: "ADM001",
			Sectors: map[string]Sector{
				"NORTH_SECTOR": {Name: "Sektori Verior", Chief: "SC001", Officers: []string{"OFF001", "OFF002", "OFF003"}},
				"SOUTH_SECTOR": {Name: "Sektori Jugor", Chief: "SC002", Officers: []string{"OFF004", "OFF005", "OFF006"}},
				"EAST_SECTOR":  {Name: "Sektori Lindor", Chief: "SC003", Officers: []string{"OFF007", "OFF008", "OFF009"}},
				"WEST_SECTOR":  {Name: "Sektori Perëndimor", Chief: "SC004", Officers: []string{"OFF010", "OFF011", "OFF012"}},
			},
		},
		"CUSTOMS_PROCEDURES": {
			Name: "Procedurat Doganore", Director: "DIR002", Administrator: "ADM002",
			Sectors: map[string]Sector{
				"IMPORT_SECTOR":  {Name: "Sektori i Importit", Chief: "SC005", Officers: []string{"OFF013", "OFF014", "OFF015"}},
				"EXPORT_SECTOR":  {Name: "Sektori i Eksportit", Chief: "SC006", Officers: []string{"OFF016", "OFF017", "OFF018"}},
				"TRANSIT_SECTOR": {Name: "Sektori i Tranzitit", Chief: "SC007", Officers: []string{"OFF019", "OFF020", "OFF021"}},
			},
		},
		"INTELLIGENCE_ANALYSIS": {
			Name: "Analiza dhe Inteligjenca", Director: "DIR003", Administrator: "ADM003",
			Sectors: map[string]Sector{
				"RISK_ANALYSIS":          {Name: "Analiza e Rrezikut", Chief: "SC008", Officers: []string{"OFF022", "OFF023", "OFF024"}},
				"INTELLIGENCE_GATHERING": {Name: "Grumbullimi i Inteligjencës", Chief: "SC009", Officers: []string{"OFF025", "OFF026", "OFF027"}},
			},
		},
		"ADMINISTRATION": {
			Name: "Administrata", Director: "DIR004", Administrator: "ADM004",
			Sectors: map[string]Sector{
				"HR_SECTOR":    {Name: "Sektori i Burimeve Njerëzore", Chief: "SC010", Officers: []string{"OFF028", "OFF029", "OFF030"}},
				"IT_SECTOR":    {Name: "Sektori i IT-së", Chief: "SC011", Officers: []string{"OFF031", "OFF032", "OFF033"}},
				"LEGAL_SECTOR": {Name: "Sektori Juridik", Chief: "SC012", Officers: []string{"OFF034", "OFF035", "OFF036"}},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}
