package config

import "testing"

func TestResolveBuildsHostAndPackageSpecs(t *testing.T) {
	doc := validDoc(t)
	doc.Nodes[0].Install = append(doc.Nodes[0].Install, SoftwareDoc{
		Name: "zookeeper", Version: "3.9", InstallPath: "/opt/zk", Source: "repository",
	})

	hosts, packages := Resolve(doc)
	if len(hosts) != 1 || hosts[0].Name != "db1" {
		t.Fatalf("unexpected hosts: %+v", hosts)
	}
	if hosts[0].Owner.KeyPath == "" {
		t.Fatal("expected owner key path to carry through")
	}
	if hosts[0].Super.Pass != "s3cret" {
		t.Fatalf("expected super password to carry through, got %+v", hosts[0].Super)
	}

	pkgs := packages["db1"]
	if len(pkgs) != 2 {
		t.Fatalf("expected 2 packages for db1, got %d", len(pkgs))
	}
	if pkgs[0].Name != "java" || pkgs[1].Name != "zookeeper" {
		t.Fatalf("expected install order preserved, got %+v", pkgs)
	}
}
