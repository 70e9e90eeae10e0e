package proxy

import (
	"fabricmcp/internal/api"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers one MCP tool per proxy operation.
func (s *Server) registerTools() {
	// Inventory queries share one option set.
	inventory := []struct {
		name        string
		collection  api.Collection
		description string
	}{
		{"query_sites", api.CollectionSites, "Query testbed sites with optional filtering, sorting and pagination"},
		{"query_hosts", api.CollectionHosts, "Query testbed hosts with optional filtering, sorting and pagination"},
		{"query_facility_ports", api.CollectionFacilityPorts, "Query facility ports with optional filtering, sorting and pagination"},
		{"query_links", api.CollectionLinks, "Query inter-site links with optional filtering, sorting and pagination"},
	}
	for _, inv := range inventory {
		tool := mcp.NewTool(inv.name,
			mcp.WithDescription(inv.description),
			mcp.WithObject("filters",
				mcp.Description("Declarative filter expression: {field: value} for equality, {field: {op: value}} for eq/ne/lt/lte/gt/gte/in/contains/icontains/regex/any/all, {\"or\": [...]} for disjunction"),
			),
			mcp.WithString("sort_field",
				mcp.Description("Field to sort by; records missing the field sort last"),
			),
			mcp.WithString("sort_direction",
				mcp.Description("Sort direction: asc (default) or desc"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum records to return (default 200; ceiling 500 unsorted, 5000 sorted)"),
			),
			mcp.WithNumber("offset",
				mcp.Description("Records to skip before the returned page"),
			),
		)
		s.server.AddTool(tool, s.handleInventoryQuery(inv.name, inv.collection))
	}

	querySlicesTool := mcp.NewTool("query_slices",
		mcp.WithDescription("List the caller's slices, keyed by slice name, with optional state and name filtering"),
		mcp.WithString("slice_id",
			mcp.Description("Return only the slice with this ID"),
		),
		mcp.WithString("name",
			mcp.Description("Return only slices with this exact name"),
		),
		mcp.WithString("include_states",
			mcp.Description("Comma-separated lifecycle states to include (e.g. StableOK,StableError)"),
		),
		mcp.WithString("exclude_states",
			mcp.Description("Comma-separated lifecycle states to exclude (e.g. Dead,Closing)"),
		),
		mcp.WithBoolean("as_self",
			mcp.Description("Restrict to slices owned by the caller (default true)"),
		),
	)
	s.server.AddTool(querySlicesTool, s.wrap("query_slices", s.handleQuerySlices))

	getSliversTool := mcp.NewTool("get_slivers",
		mcp.WithDescription("List the slivers of one slice"),
		mcp.WithString("slice_id",
			mcp.Required(),
			mcp.Description("Slice whose slivers to list"),
		),
	)
	s.server.AddTool(getSliversTool, s.wrap("get_slivers", s.handleGetSlivers))

	createSliceTool := mcp.NewTool("create_slice",
		mcp.WithDescription("Provision a new slice from a serialized topology"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Slice name"),
		),
		mcp.WithString("graph_model",
			mcp.Required(),
			mcp.Description("Serialized slice topology (GRAPHML or JSON), forwarded verbatim"),
		),
		mcp.WithArray("ssh_keys",
			mcp.Required(),
			mcp.Description("SSH public keys installed on the provisioned slivers"),
		),
		mcp.WithNumber("lifetime_days",
			mcp.Description("Requested lease lifetime in days"),
		),
		mcp.WithString("lease_start_time",
			mcp.Description("Requested lease start (UTC, YYYY-MM-DD HH:MM:SS)"),
		),
		mcp.WithString("lease_end_time",
			mcp.Description("Requested lease end (UTC, YYYY-MM-DD HH:MM:SS)"),
		),
	)
	s.server.AddTool(createSliceTool, s.wrap("create_slice", s.handleCreateSlice))

	modifySliceTool := mcp.NewTool("modify_slice",
		mcp.WithDescription("Submit a new topology for an existing slice"),
		mcp.WithString("slice_id",
			mcp.Required(),
			mcp.Description("Slice to modify"),
		),
		mcp.WithString("graph_model",
			mcp.Required(),
			mcp.Description("New serialized topology"),
		),
	)
	s.server.AddTool(modifySliceTool, s.wrap("modify_slice", s.handleModifySlice))

	acceptModifyTool := mcp.NewTool("accept_modify",
		mcp.WithDescription("Accept the pending modification of a slice"),
		mcp.WithString("slice_id",
			mcp.Required(),
			mcp.Description("Slice whose modification to accept"),
		),
	)
	s.server.AddTool(acceptModifyTool, s.wrap("accept_modify", s.handleAcceptModify))

	renewSliceTool := mcp.NewTool("renew_slice",
		mcp.WithDescription("Extend a slice's lease"),
		mcp.WithString("slice_id",
			mcp.Required(),
			mcp.Description("Slice to renew"),
		),
		mcp.WithString("lease_end_time",
			mcp.Required(),
			mcp.Description("New lease end (UTC, YYYY-MM-DD HH:MM:SS)"),
		),
	)
	s.server.AddTool(renewSliceTool, s.wrap("renew_slice", s.handleRenewSlice))

	deleteSliceTool := mcp.NewTool("delete_slice",
		mcp.WithDescription("Delete a slice"),
		mcp.WithString("slice_id",
			mcp.Required(),
			mcp.Description("Slice to delete"),
		),
	)
	s.server.AddTool(deleteSliceTool, s.wrap("delete_slice", s.handleDeleteSlice))

	showProjectsTool := mcp.NewTool("show_my_projects",
		mcp.WithDescription("List the caller's projects"),
		mcp.WithString("project_name",
			mcp.Description("Filter by project name"),
		),
		mcp.WithString("project_id",
			mcp.Description("Filter by project UUID"),
		),
	)
	s.server.AddTool(showProjectsTool, s.wrap("show_my_projects", s.handleShowMyProjects))

	listProjectUsersTool := mcp.NewTool("list_project_users",
		mcp.WithDescription("List the members of a project"),
		mcp.WithString("project_uuid",
			mcp.Required(),
			mcp.Description("Project whose members to list"),
		),
	)
	s.server.AddTool(listProjectUsersTool, s.wrap("list_project_users", s.handleListProjectUsers))

	getUserKeysTool := mcp.NewTool("get_user_keys",
		mcp.WithDescription("List a user's SSH keys"),
		mcp.WithString("user_uuid",
			mcp.Required(),
			mcp.Description("User whose keys to list"),
		),
		mcp.WithString("key_type",
			mcp.Description("Key type to list: sliver (default) or bastion"),
		),
	)
	s.server.AddTool(getUserKeysTool, s.wrap("get_user_keys", s.handleGetUserKeys))

	addKeyTool := mcp.NewTool("add_public_key",
		mcp.WithDescription("Install an SSH public key on a sliver"),
		mcp.WithString("sliver_id",
			mcp.Required(),
			mcp.Description("Target sliver"),
		),
		mcp.WithString("ssh_key",
			mcp.Required(),
			mcp.Description("SSH public key to install"),
		),
	)
	s.server.AddTool(addKeyTool, s.wrap("add_public_key", s.handleAddPublicKey))

	removeKeyTool := mcp.NewTool("remove_public_key",
		mcp.WithDescription("Remove an SSH public key from a sliver"),
		mcp.WithString("sliver_id",
			mcp.Required(),
			mcp.Description("Target sliver"),
		),
		mcp.WithString("ssh_key",
			mcp.Required(),
			mcp.Description("SSH public key to remove"),
		),
	)
	s.server.AddTool(removeKeyTool, s.wrap("remove_public_key", s.handleRemovePublicKey))

	rebootTool := mcp.NewTool("os_reboot",
		mcp.WithDescription("Reboot the operating system of a sliver"),
		mcp.WithString("sliver_id",
			mcp.Required(),
			mcp.Description("Sliver to reboot"),
		),
	)
	s.server.AddTool(rebootTool, s.wrap("os_reboot", s.handleOSReboot))
}
