package main

import (
	"context"
	"time"

	"roomly/internal/bookings/conflict"
	bookinghandler "roomly/internal/bookings/handler"
	bookingrepo "roomly/internal/bookings/repository"
	bookingservice "roomly/internal/bookings/service"
	bookingvalidator "roomly/internal/bookings/validator"
	roomhandler "roomly/internal/rooms/handler"
	roomrepo "roomly/internal/rooms/repository"
	roomservice "roomly/internal/rooms/service"
	schedulehandler "roomly/internal/schedule/handler"
	scheduleservice "roomly/internal/schedule/service"
	"roomly/pkg/app"
	"roomly/pkg/config"
	"roomly/pkg/events"
)

func main() {
	cfg := config.Load("roomly-server")
	cfg.SetMongo()

	bookingRepository := bookingrepo.NewMongoBookingRepository(cfg)
	roomRepository := roomrepo.NewMongoRoomRepository(cfg)

	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := bookingRepository.EnsureIndexes(indexCtx); err != nil {
		cfg.Log.Fatal("Failed to ensure booking indexes", "error", err)
	}
	if err := roomRepository.EnsureIndexes(indexCtx); err != nil {
		cfg.Log.Fatal("Failed to ensure room indexes", "error", err)
	}

	publisher := events.NewNopPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaBookingsTopic, cfg.Log)
	}

	bookingService := bookingservice.NewBookingService(
		bookingRepository,
		roomRepository,
		conflict.NewIndex(),
		bookingvalidator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)
	roomService := roomservice.NewRoomService(roomRepository, cfg)
	scheduleService := scheduleservice.NewScheduleService(roomRepository, bookingRepository, cfg)

	// The conflict index is a derived cache; seed it from the store of
	// record before accepting traffic.
	if err := bookingService.RebuildIndex(indexCtx); err != nil {
		cfg.Log.Fatal("Failed to rebuild conflict index", "error", err)
	}

	application := app.NewApplication(cfg)
	application.SetHandlers(
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		roomhandler.NewRoomHandler(roomService, cfg.Log),
		schedulehandler.NewScheduleHandler(scheduleService, cfg.Log),
	)
	application.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
		cfg.GracefulShutdown()
	})

	application.Run()
}
