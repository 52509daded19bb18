package app

import "github.com/gin-gonic/gin"

// Module defines the contract for a self-registering resource module.
// Each module mounts its CRUD routes on the API group.
type Module interface {
	RegisterRoutes(api *gin.RouterGroup) error
}
