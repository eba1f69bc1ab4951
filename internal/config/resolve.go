package config

import "hostfleet/pkg/task"

// Resolve converts a validated Document into the host and package specs the
// task catalog and scheduler operate on. Callers must run Validate first;
// Resolve does not re-check anything Validate already covers.
func Resolve(doc *Document) ([]task.HostSpec, map[string][]task.PackageSpec) {
	hosts := make([]task.HostSpec, 0, len(doc.Nodes))
	packages := make(map[string][]task.PackageSpec, len(doc.Nodes))

	for _, n := range doc.Nodes {
		hosts = append(hosts, task.HostSpec{
			Name: n.Name,
			Host: n.Host,
			Port: n.Port,
			Owner: task.CredentialSet{
				User:    n.OwnerUser,
				Pass:    n.OwnerPass,
				KeyPath: n.OwnerKey,
			},
			Super: task.CredentialSet{
				User:    n.SuperUser,
				Pass:    n.SuperPass,
				KeyPath: n.SuperKey,
			},
		})

		pkgs := make([]task.PackageSpec, 0, len(n.Install))
		for _, p := range n.Install {
			pkgs = append(pkgs, task.PackageSpec{
				Name:        p.Name,
				Version:     p.Version,
				InstallPath: p.InstallPath,
				Source:      task.Source(p.Source),
				SourcePath:  p.SourcePath,
				Config:      p.Config,
			})
		}
		packages[n.Name] = pkgs
	}

	return hosts, packages
}
