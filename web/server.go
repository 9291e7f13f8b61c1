package web

import (
	"log"
	"net/http"
	"os"
	"path"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mogaika/geoscene_viewer/config"
)

var serverConfig *config.Config

func StartServer(cfg *config.Config) error {
	serverConfig = cfg

	r := mux.NewRouter()
	r.HandleFunc("/json/scene", HandlerAjaxSceneList)
	r.HandleFunc("/json/scene/{file}", HandlerAjaxScene)
	r.HandleFunc("/json/model/{file:.+}", HandlerAjaxModel)
	r.HandleFunc("/json/bmesh/{file:.+}", HandlerAjaxBinaryMesh)
	r.HandleFunc("/bin/model/{buffer}/{file:.+}", HandlerModelBuffer)
	r.HandleFunc("/dump/model/{file:.+}", HandlerDumpModel)
	r.HandleFunc("/ws/status", HandlerStatusWs)

	r.PathPrefix("/").Handler(http.FileServer(http.Dir(path.Join(cfg.WebDir, "data"))))

	h := handlers.RecoveryHandler()(r)
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", cfg.Addr)

	return http.ListenAndServe(cfg.Addr, h)
}
