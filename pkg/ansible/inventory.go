package ansible

import (
	"fmt"
	"sort"
	"strings"

	"hostfleet/pkg/task"
)

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{
		Groups: make(map[string]*InventoryGroup),
		Hosts:  make(map[string]*InventoryHost),
	}
}

// AddHost registers a host in the inventory.
func (inv *Inventory) AddHost(host *InventoryHost) {
	inv.Hosts[host.Name] = host
}

// AddGroup registers a group in the inventory.
func (inv *Inventory) AddGroup(group *InventoryGroup) {
	inv.Groups[group.Name] = group
}

// ToINI renders the inventory in the classic Ansible INI format.
func (inv *Inventory) ToINI() string {
	var lines []string

	ungroupedHosts := inv.getUngroupedHosts()
	for _, hostName := range ungroupedHosts {
		lines = append(lines, formatHost(inv.Hosts[hostName]))
	}
	if len(ungroupedHosts) > 0 {
		lines = append(lines, "")
	}

	groupNames := make([]string, 0, len(inv.Groups))
	for name := range inv.Groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	for _, groupName := range groupNames {
		group := inv.Groups[groupName]
		lines = append(lines, fmt.Sprintf("[%s]", groupName))
		for _, hostName := range group.Hosts {
			if host, exists := inv.Hosts[hostName]; exists {
				lines = append(lines, formatHost(host))
			}
		}
		if len(group.Vars) > 0 {
			lines = append(lines, "", fmt.Sprintf("[%s:vars]", groupName))
			for _, key := range sortedKeys(group.Vars) {
				lines = append(lines, fmt.Sprintf("%s=%s", key, group.Vars[key]))
			}
		}
		if len(group.Children) > 0 {
			lines = append(lines, "", fmt.Sprintf("[%s:children]", groupName))
			lines = append(lines, group.Children...)
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func formatHost(host *InventoryHost) string {
	parts := []string{host.Name}
	if host.Address != "" && host.Address != host.Name {
		parts = append(parts, fmt.Sprintf("ansible_host=%s", host.Address))
	}
	for _, key := range sortedKeys(host.Vars) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, host.Vars[key]))
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (inv *Inventory) getUngroupedHosts() []string {
	grouped := make(map[string]bool)
	for _, group := range inv.Groups {
		for _, hostName := range group.Hosts {
			grouped[hostName] = true
		}
	}
	var ungrouped []string
	for hostName := range inv.Hosts {
		if !grouped[hostName] {
			ungrouped = append(ungrouped, hostName)
		}
	}
	sort.Strings(ungrouped)
	return ungrouped
}

// FromHost builds a single-host inventory addressed under "target", the
// fixed group name every installer playbook runs its play against so the
// generated playbook's Hosts field never has to vary by host name.
func FromHost(h task.HostSpec, cred task.CredentialSet) *Inventory {
	inv := NewInventory()

	vars := map[string]string{
		"ansible_port": fmt.Sprintf("%d", h.Port),
	}
	if cred.User != "" {
		vars["ansible_user"] = cred.User
	}
	if cred.KeyPath != "" {
		vars["ansible_ssh_private_key_file"] = cred.KeyPath
	}
	if cred.Pass != "" {
		vars["ansible_ssh_pass"] = cred.Pass
	}

	inv.AddHost(&InventoryHost{Name: h.Name, Address: h.Host, Vars: vars})
	inv.AddGroup(&InventoryGroup{Name: "target", Hosts: []string{h.Name}})
	return inv
}
