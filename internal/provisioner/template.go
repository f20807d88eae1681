package provisioner

import _ "embed"

// The tenant table template ships embedded in the binary. Workers run in a
// stateless function environment, so nothing may be read from the local
// filesystem at runtime.
//
//go:embed tenant-table.yaml
var tenantTableTemplate string

// templateKey is the object-storage key the template is uploaded under.
const templateKey = "templates/tenant-table.yaml"
