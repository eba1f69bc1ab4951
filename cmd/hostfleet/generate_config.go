package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const configTemplate = `general:
  data_dir: ./deploy_data
  max_concurrent_nodes: 10

log:
  dir: ./deploy_data/log
  level: INFO

nodes:
  - name: db1
    host: 10.0.0.1
    port: 22
    owner_user: deploy
    owner_key: ~/.ssh/id_rsa
    super_user: root
    super_pass: CHANGE_ME
    install:
      - name: java
        version: "17"
        install_path: /opt/java
        source: repository
        config:
          set_java_home: true
      - name: zookeeper
        version: "3.8"
        install_path: /opt/zookeeper
        source: repository
        config:
          client_port: 2181
`

// newGenerateConfigCmd prints a template configuration file to stdout, for
// a user to redirect into a starting point and edit.
func newGenerateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config",
		Short: "Print a template hostfleet configuration file to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), configTemplate)
			return nil
		},
	}
}
