// Package nutrition は基礎代謝、総消費カロリー、マクロ栄養素の計算を提供する。
// すべて純粋関数であり、状態を持たない。
package nutrition

import "github.com/hitoshi/grindbot/internal/model"

// activityMultipliers は活動レベルごとのTDEE係数。
var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivitySedentary:  1.2,
	model.ActivityLight:      1.375,
	model.ActivityModerate:   1.55,
	model.ActivityActive:     1.725,
	model.ActivityVeryActive: 1.9,
}

// defaultMultiplier は未知の活動レベルに使う係数（moderate相当）。
const defaultMultiplier = 1.55

// macroSplit は目標ごとのカロリー補正とPFC比率。
type macroSplit struct {
	calorieFactor float64
	protein       float64
	carbs         float64
	fats          float64
}

var splits = map[model.Goal]macroSplit{
	model.GoalBulk: {calorieFactor: 1.1, protein: 0.30, carbs: 0.45, fats: 0.25},
	model.GoalCut:  {calorieFactor: 0.8, protein: 0.40, carbs: 0.30, fats: 0.30},
}

// maintainSplit はmaintainおよび未知の目標に使う比率。
var maintainSplit = macroSplit{calorieFactor: 1, protein: 0.30, carbs: 0.40, fats: 0.30}

// ComputeBMR はMifflin-St Jeor式で基礎代謝（kcal/日）を計算する。
// female以外の値はすべて男性の式で計算する。
func ComputeBMR(weightKg, heightCm float64, ageYears int, sex model.Sex) float64 {
	bmr := 10*weightKg + 6.25*heightCm - 5*float64(ageYears)
	if sex == model.SexFemale {
		return bmr - 161
	}
	return bmr + 5
}

// ComputeTDEE は基礎代謝に活動係数を掛けて総消費カロリーを計算する。
// 未知の活動レベルはmoderateとして扱う。
func ComputeTDEE(bmr float64, level model.ActivityLevel) float64 {
	mult, ok := activityMultipliers[level]
	if !ok {
		mult = defaultMultiplier
	}
	return bmr * mult
}

// ComputeMacros は目標に応じた目標カロリーとPFC（g）を計算する。
// 端数は四捨五入せず切り捨てる。目標カロリーを先に整数化し、
// その値から各栄養素を算出する。
func ComputeMacros(calories float64, goal model.Goal) model.Macros {
	split, ok := splits[goal]
	if !ok {
		split = maintainSplit
	}

	target := int(calories * split.calorieFactor)
	t := float64(target)

	return model.Macros{
		Calories: target,
		Protein:  int(t * split.protein / 4),
		Carbs:    int(t * split.carbs / 4),
		Fats:     int(t * split.fats / 9),
	}
}

// Apply はプロフィールの体組成・目標・活動レベルからBMR、TDEE、Macrosを再計算して上書きする。
// プロフィールを保存する前に必ず呼び出す。性別は収集しないため男性の式を使う。
func Apply(p *model.UserProfile) {
	p.BMR = ComputeBMR(p.WeightKg, p.HeightCm, p.Age, model.SexMale)
	p.TDEE = ComputeTDEE(p.BMR, p.Activity)
	p.Macros = ComputeMacros(p.TDEE, p.Goal)
}
