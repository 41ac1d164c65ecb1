package workflows

import "github.com/dukex/approvion/pkg/models"

// Demo approver directory. In production these would come from an employee
// directory lookup; the routing rule sets reference them directly.
var (
	Manager  = models.Identity{ID: "MGR001", Name: "Sarah Johnson", Email: "sarah.johnson@company.com"}
	HR       = models.Identity{ID: "HR001", Name: "Michael Chen", Email: "michael.chen@company.com"}
	Finance  = models.Identity{ID: "FIN001", Name: "Lisa Rodriguez", Email: "lisa.rodriguez@company.com"}
	IT       = models.Identity{ID: "IT001", Name: "David Park", Email: "david.park@company.com"}
	Director = models.Identity{ID: "DIR001", Name: "Emma Wilson", Email: "emma.wilson@company.com"}
)
