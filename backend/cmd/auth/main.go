package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"

	"edufiliova/backend/config"
	"edufiliova/backend/internal/authservice"
	"edufiliova/backend/internal/user"
)

func main() {
	var cfg config.AuthConfig
	if err := config.Load("authConfig", &cfg); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	port := cfg.Running.Port

	db, err := sql.Open("mysql", cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("open mysql: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping mysql: %v", err)
	}

	secret := cfg.Jwt.Secret
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		log.Printf("jwt secret not configured, using development default")
	}
	signer := authservice.NewSigner(secret, cfg.Jwt.AccessTTL, cfg.Jwt.RefreshTTL)
	h := authservice.NewHandler(user.NewMySQLRepository(db), signer)

	r := gin.New()
	// 使用gin.Logger()和gin.Recovery()中间件，记录请求日志和恢复panic
	r.Use(gin.Logger(), gin.Recovery())
	h.Routes(r)

	_ = r.Run(fmt.Sprintf(":%d", port))
}
