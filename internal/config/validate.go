package config

import (
	"fmt"
	"os"
)

var validLogLevels = map[string]bool{
	"DEBUG": true,
	"INFO":  true,
	"WARN":  true,
	"ERROR": true,
}

var validSources = map[string]bool{
	"repository": true,
	"local":      true,
	"url":        true,
}

// Validate checks a loaded Document for internal consistency and reachable
// local state (key files, writable directories). It never touches the
// network; connectivity is the checkers' job once a run starts. It returns
// every problem found rather than stopping at the first, so a user fixing a
// config file sees all of it at once.
func Validate(doc *Document) []string {
	var errs []string

	if !validLogLevels[doc.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is not one of DEBUG, INFO, WARN, ERROR", doc.Log.Level))
	}
	errs = append(errs, checkWritableDir("general.data_dir", doc.General.DataDir)...)
	errs = append(errs, checkWritableDir("log.dir", doc.Log.Dir)...)

	if doc.General.MaxConcurrentNodes < 1 {
		errs = append(errs, "general.max_concurrent_nodes must be at least 1")
	}

	if len(doc.Nodes) == 0 {
		errs = append(errs, "nodes: at least one node is required")
	}

	seen := make(map[string]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		prefix := fmt.Sprintf("nodes[%d]", i)
		if n.Name == "" {
			errs = append(errs, prefix+": name is required")
		} else if seen[n.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate node name %q", prefix, n.Name))
		} else {
			seen[n.Name] = true
		}
		if n.Host == "" {
			errs = append(errs, fmt.Sprintf("%s (%s): host is required", prefix, n.Name))
		}
		if n.Port < 1 || n.Port > 65535 {
			errs = append(errs, fmt.Sprintf("%s (%s): port %d out of range 1-65535", prefix, n.Name, n.Port))
		}
		errs = append(errs, validateCredentials(prefix, n.Name, "owner", n.OwnerUser, n.OwnerPass, n.OwnerKey)...)
		errs = append(errs, validateCredentials(prefix, n.Name, "super", n.SuperUser, n.SuperPass, n.SuperKey)...)

		if len(n.Install) == 0 {
			errs = append(errs, fmt.Sprintf("%s (%s): install list is empty", prefix, n.Name))
		}
		for j, pkg := range n.Install {
			errs = append(errs, validatePackage(fmt.Sprintf("%s.install[%d]", prefix, j), n.Name, pkg)...)
		}
	}

	return errs
}

func validateCredentials(prefix, node, role, user, pass, keyPath string) []string {
	var errs []string
	if user == "" {
		errs = append(errs, fmt.Sprintf("%s (%s): %s_user is required", prefix, node, role))
	}
	if pass == "" && keyPath == "" {
		errs = append(errs, fmt.Sprintf("%s (%s): %s requires either a password or a key path", prefix, node, role))
		return errs
	}
	if keyPath != "" {
		errs = append(errs, checkKeyFile(prefix, node, role, keyPath)...)
	}
	return errs
}

func checkKeyFile(prefix, node, role, keyPath string) []string {
	info, err := os.Stat(keyPath)
	if err != nil {
		return []string{fmt.Sprintf("%s (%s): %s_key %q: %v", prefix, node, role, keyPath, err)}
	}
	if info.Mode().Perm()&0o077 != 0 {
		return []string{fmt.Sprintf("%s (%s): %s_key %q has overly permissive mode %04o, expected 0600", prefix, node, role, keyPath, info.Mode().Perm())}
	}
	return nil
}

func validatePackage(prefix, node string, pkg SoftwareDoc) []string {
	var errs []string
	if pkg.Name == "" {
		errs = append(errs, fmt.Sprintf("%s (%s): name is required", prefix, node))
	}
	if pkg.Version == "" {
		errs = append(errs, fmt.Sprintf("%s (%s): version is required", prefix, node))
	}
	if pkg.InstallPath == "" {
		errs = append(errs, fmt.Sprintf("%s (%s): install_path is required", prefix, node))
	}
	if !validSources[pkg.Source] {
		errs = append(errs, fmt.Sprintf("%s (%s): source %q must be one of repository, local, url", prefix, node, pkg.Source))
	}
	if (pkg.Source == "local" || pkg.Source == "url") && pkg.SourcePath == "" {
		errs = append(errs, fmt.Sprintf("%s (%s): source_path is required when source is %q", prefix, node, pkg.Source))
	}
	return errs
}

// checkWritableDir ensures dir exists (creating it if necessary) and is
// writable, without leaving behind a permanent marker file.
func checkWritableDir(field, dir string) []string {
	if dir == "" {
		return []string{field + " must not be empty"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return []string{fmt.Sprintf("%s %q: %v", field, dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".hostfleet-write-test-*")
	if err != nil {
		return []string{fmt.Sprintf("%s %q is not writable: %v", field, dir, err)}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}
