package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/prisvakt/compliance-service/docs"
)

// SwaggerPath is where the API documentation UI is served
const SwaggerPath = "/swagger/*any"

// RegisterDocs mounts the Swagger UI and the generated OpenAPI document
func RegisterDocs(router *gin.Engine) {
	router.GET(SwaggerPath, ginSwagger.WrapHandler(swaggerFiles.Handler))
}
