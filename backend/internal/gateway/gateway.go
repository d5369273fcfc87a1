package gateway

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func newProxy(target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", target, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", target)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error upstream=%s path=%s err=%v", u.Host, r.URL.Path, err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return p, nil
}

// NewRouter /auth/* 转发到认证服务（补 /v1 前缀），/api/* 与 /realtime/* 转发到实时服务
func NewRouter(authPath, realtimePath string) (*gin.Engine, error) {
	authProxy, err := newProxy(authPath)
	if err != nil {
		return nil, err
	}
	realtimeProxy, err := newProxy(realtimePath)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		// 允许任意来源（包含 file:// 场景的 Origin: null）
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Cache"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.Any("/auth/*any", func(c *gin.Context) {
		c.Request.URL.Path = "/v1" + c.Request.URL.Path
		authProxy.ServeHTTP(c.Writer, c.Request)
	})

	// WebSocket 升级请求同样走 ReverseProxy
	forward := func(c *gin.Context) {
		realtimeProxy.ServeHTTP(c.Writer, c.Request)
	}
	r.Any("/api/*any", forward)
	r.Any("/realtime/*any", forward)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, nil
}
