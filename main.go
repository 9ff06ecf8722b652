package main

import (
	"fmt"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/studify-app/studify_backend/routers"
	"github.com/studify-app/studify_backend/util"
	"log"
	"os"
)

func main() {
	err := util.DBConnectAndPopulateDBVar()
	if err != nil {
		fmt.Println(err.Error())
		log.Fatal("couldn't connect to the database")
	} else {
		fmt.Println("Connected to the database")
	}
	if err = util.CreateTableIfNotExists(); err != nil {
		log.Fatal("Couldn't create tables ", err.Error())
	}
	fmt.Println("Tables Created")

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	routers.SetupRoutes(app)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Fatal(app.Listen(":" + port))
}
