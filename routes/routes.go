package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/questforge/dm-companion/handlers"
	"github.com/questforge/dm-companion/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRoutes собирает маршрутизатор приложения. Справочник открыт на чтение,
// всё остальное — за JWT.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	characterHandler *handlers.CharacterHandler,
	compendiumHandler *handlers.CompendiumHandler,
	encounterHandler *handlers.EncounterHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
	})

	router.Route("/compendium", func(r chi.Router) {
		r.Get("/monsters", compendiumHandler.ListMonsters)
		r.Get("/monsters/{monsterID}", compendiumHandler.GetMonster)
		r.Get("/spells", compendiumHandler.ListSpells)
		r.Get("/spells/{spellSlug}", compendiumHandler.GetSpell)
	})

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/profile", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", userHandler.GetProfile)
		r.Put("/", userHandler.UpdateProfile)
		r.Post("/avatar", userHandler.UploadAvatar)
		r.Delete("/", userHandler.DeleteAccount)
	})

	router.Route("/characters", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", characterHandler.ListCharacters)
		r.Post("/", characterHandler.CreateCharacter)
		r.Get("/{characterID}", characterHandler.GetCharacter)
		r.Put("/{characterID}", characterHandler.UpdateCharacter)
		r.Post("/{characterID}/portrait", characterHandler.UploadPortrait)
		r.Delete("/{characterID}", characterHandler.DeleteCharacter)
	})

	router.Route("/encounters", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", encounterHandler.ListEncounters)
		r.Post("/", encounterHandler.CreateEncounter)
		r.Get("/{encounterID}", encounterHandler.GetEncounter)
		r.Put("/{encounterID}", encounterHandler.UpdateEncounter)
		r.Delete("/{encounterID}", encounterHandler.DeleteEncounter)
	})

	router.Get("/ws/encounters/{encounterID}", webSocketHandler.ServeWs)
}
