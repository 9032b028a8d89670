package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/cascacheck/cascacheck_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// check if model has expiration date
func typeHasExpiration(typeName string) bool {
	expirableTypes := map[string]bool{
		"Store":                 true,
		"PendingActionPlanView": true,
	}
	return expirableTypes[typeName]
}

// store list, optionally scoped to a store
func StoreRedisList[T any](obj any, storeId int) error {
	var key string
	typeName := GetTypeName[T]()
	if storeId == 0 {
		key = typeName + "List"
	} else {
		key = typeName + "List:" + fmt.Sprint(storeId)
	}

	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(key, &obj, duration)
}

// retrieve a list.
// storeId can be zero for the unscoped list
func RetrieveRedisList[T any](storeId int) ([]*T, error) {
	var key string
	if storeId == 0 {
		key = GetTypeName[T]() + "List"
	} else {
		key = GetTypeName[T]() + "List:" + fmt.Sprint(storeId)
	}

	var result []*T
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// clear list, TypeList:$store_id
func RemoveRedisList[T any](storeId int) error {
	var key string
	if storeId == 0 {
		key = GetTypeName[T]() + "List"
	} else {
		key = GetTypeName[T]() + "List:" + fmt.Sprint(storeId)
	}
	return config.RemoveRedisKey(key)
}
