package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"meterscan/models"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	role := flag.String("role", models.RoleOperator, "role name (operator or administrator)")
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Println("usage: go run ./cmd/create_user [-role operator] <username> <password>")
		os.Exit(2)
	}
	username := strings.TrimSpace(flag.Arg(0))
	password := flag.Arg(1)
	if len(password) < 6 {
		log.Fatal("password too short (min 6)")
	}

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	var r models.Role
	if err := db.Where("name = ?", *role).First(&r).Error; err != nil {
		known := false
		for _, d := range models.DefaultRoles() {
			if d.Name == *role {
				r, known = d, true
			}
		}
		if !known {
			log.Fatalf("unknown role %q", *role)
		}
		if err := db.Create(&r).Error; err != nil {
			log.Fatalf("failed to create role %s: %v", *role, err)
		}
	}

	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists (id=%d)\n", username, existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	rid := r.ID
	user := models.User{Username: username, HashedPassword: hpw, RoleID: &rid}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created %s %s id=%d\n", r.Name, username, user.ID)
}
