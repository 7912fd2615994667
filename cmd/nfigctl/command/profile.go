package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Profile is one named nfigd connection, the unit nfigctl's config file
// groups under a name so operators can switch targets with -p instead of
// retyping --addr/--user/--password every time.
type Profile struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ProfilesFile is the on-disk shape of nfigctl's config file.
type ProfilesFile struct {
	Default  string             `yaml:"default"`
	Profiles map[string]Profile `yaml:"profiles"`
}

func loadProfiles(path string) (*ProfilesFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ProfilesFile{Profiles: map[string]Profile{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}
	pf := &ProfilesFile{}
	if err := yaml.Unmarshal(data, pf); err != nil {
		return nil, fmt.Errorf("parsing profiles file: %w", err)
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]Profile{}
	}
	return pf, nil
}

func saveProfiles(path string, pf *ProfilesFile) error {
	data, err := yaml.Marshal(pf)
	if err != nil {
		return fmt.Errorf("marshalling profiles file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultProfilesPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "nfigctl", "profiles.yaml")
	}
	return "nfigctl-profiles.yaml"
}

// resolve returns the named profile, or the file's default profile when
// name is empty; it returns an error when no profile is selected or the
// name is unknown. Falling back to the --addr/--user/--password flags is
// left to newClient.
func (pf *ProfilesFile) resolve(name string) (Profile, error) {
	if name == "" {
		name = pf.Default
	}
	if name == "" {
		return Profile{}, fmt.Errorf("no profile selected and no default profile configured")
	}
	p, ok := pf.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("no such profile %q", name)
	}
	return p, nil
}
