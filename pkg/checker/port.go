package checker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

// PortAvailability builds a checker that fails at Error level when any port
// the package declares in pkg.Config is already bound on the host. Packages that declare
// no ports (most installers, aside from Zookeeper) skip the check entirely.
func PortAvailability() Checker {
	return func(ctx context.Context, pool *sshexec.Pool, host task.HostSpec, pkg task.PackageSpec) Result {
		ports := portsForPackage(pkg)
		if len(ports) == 0 {
			return Result{Name: "Port Availability", Level: LevelInfo, Passed: true, Message: "no ports to check"}
		}

		var occupied []int
		for _, port := range ports {
			cmd := fmt.Sprintf("ss -tuln 2>/dev/null | grep ':%d ' || echo free", port)
			res, err := runCommand(ctx, pool, host, cmd, true)
			if err != nil {
				return errorResult("Port Availability", "failed to check ports", err)
			}
			if res.ExitCode == 0 && !strings.Contains(res.Stdout, "free") {
				occupied = append(occupied, port)
			}
		}

		return portResult(ports, occupied)
	}
}

// portResult is the pure decision behind PortAvailability, given the full
// set of ports checked and the subset found occupied.
func portResult(ports, occupied []int) Result {
	portStrs := intsToStrings(ports)
	if len(occupied) == 0 {
		return Result{
			Name: "Port Availability", Level: LevelInfo, Passed: true,
			Message: fmt.Sprintf("all required ports are available: %v", ports),
			Details: map[string]string{"ports": strings.Join(portStrs, ",")},
		}
	}
	return Result{
		Name: "Port Availability", Level: LevelError, Passed: false,
		Message: fmt.Sprintf("some ports are occupied: %v", occupied),
		Details: map[string]string{"ports": strings.Join(portStrs, ","), "occupied": strings.Join(intsToStrings(occupied), ",")},
	}
}

// portsForPackage derives the TCP ports a package will bind on this host
// from its config. For Zookeeper these are the client_port, peer_port and
// leader_port keys (client_port is the same key renderZooCfg writes as
// clientPort). Packages with no known port convention return nil.
func portsForPackage(pkg task.PackageSpec) []int {
	switch pkg.Name {
	case "zookeeper":
		return []int{
			configInt(pkg, "client_port", 2181),
			configInt(pkg, "peer_port", 2888),
			configInt(pkg, "leader_port", 3888),
		}
	default:
		return nil
	}
}

func intsToStrings(ints []int) []string {
	out := make([]string, len(ints))
	for i, v := range ints {
		out[i] = strconv.Itoa(v)
	}
	return out
}
