package ansible

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NewPlaybook creates an empty playbook.
func NewPlaybook(name, hosts string) *Playbook {
	return &Playbook{Name: name, Hosts: hosts, Plays: []Play{}}
}

// AddPlay appends a play to the playbook.
func (p *Playbook) AddPlay(play Play) {
	p.Plays = append(p.Plays, play)
}

// ToYAML renders the playbook the way ansible-playbook expects to read it
// from disk: a top-level list of play documents.
func (p *Playbook) ToYAML() ([]byte, error) {
	plays := make([]map[string]any, 0, len(p.Plays))

	for _, play := range p.Plays {
		playMap := map[string]any{
			"name":  play.Name,
			"hosts": play.Hosts,
		}

		if play.BecomeUser != "" {
			playMap["become"] = play.Become
			playMap["become_user"] = play.BecomeUser
		} else if play.Become {
			playMap["become"] = true
		}

		playMap["gather_facts"] = play.GatherFacts

		if len(play.Vars) > 0 {
			playMap["vars"] = play.Vars
		}
		if len(play.PreTasks) > 0 {
			playMap["pre_tasks"] = convertTasks(play.PreTasks)
		}
		if len(play.Roles) > 0 {
			playMap["roles"] = convertRoles(play.Roles)
		}
		if len(play.Tasks) > 0 {
			playMap["tasks"] = convertTasks(play.Tasks)
		}
		if len(play.PostTasks) > 0 {
			playMap["post_tasks"] = convertTasks(play.PostTasks)
		}
		if len(play.Handlers) > 0 {
			playMap["handlers"] = convertHandlers(play.Handlers)
		}

		plays = append(plays, playMap)
	}

	return yaml.Marshal(plays)
}

func convertTasks(tasks []Task) []map[string]any {
	result := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		taskMap := map[string]any{"name": task.Name}
		if task.Module != "" {
			taskMap[task.Module] = task.Args
		}
		if task.When != "" {
			taskMap["when"] = task.When
		}
		if task.Register != "" {
			taskMap["register"] = task.Register
		}
		if len(task.Notify) > 0 {
			taskMap["notify"] = task.Notify
		}
		if len(task.Tags) > 0 {
			taskMap["tags"] = task.Tags
		}
		if task.Ignore {
			taskMap["ignore_errors"] = true
		}
		result = append(result, taskMap)
	}
	return result
}

func convertRoles(roles []Role) []any {
	result := make([]any, 0, len(roles))
	for _, role := range roles {
		if len(role.Vars) > 0 {
			result = append(result, map[string]any{"role": role.Name, "vars": role.Vars})
		} else {
			result = append(result, role.Name)
		}
	}
	return result
}

func convertHandlers(handlers []Handler) []map[string]any {
	result := make([]map[string]any, 0, len(handlers))
	for _, handler := range handlers {
		result = append(result, map[string]any{
			"name":          handler.Name,
			handler.Module:  handler.Args,
		})
	}
	return result
}

// String renders the playbook as YAML, or an error message if rendering
// fails, for quick display in logs and --dry-run output.
func (p *Playbook) String() string {
	out, err := p.ToYAML()
	if err != nil {
		return fmt.Sprintf("error generating YAML: %v", err)
	}
	return string(out)
}

// Summary returns a one-line description of the playbook's shape.
func (p *Playbook) Summary() string {
	return fmt.Sprintf("playbook %q: %d play(s) against %s", p.Name, len(p.Plays), p.Hosts)
}

// SingleTaskPlaybook builds the common case: one play against one host
// running a flat list of tasks, with become set as given. Installers use it
// for their Install step (see installer.base.runInstallPlaybook).
func SingleTaskPlaybook(name, host string, become bool, tasks []Task) *Playbook {
	pb := NewPlaybook(name, host)
	pb.AddPlay(Play{
		Name:        name,
		Hosts:       host,
		Become:      become,
		GatherFacts: false,
		Tasks:       tasks,
	})
	return pb
}
